// Package postgres implements the storage ports on PostgreSQL through pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"parcelas/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, url string) (*Repository, error) {
	if err := RunMigrations(url); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// RunMigrations applies the embedded schema through the pgx5 migrate driver.
func RunMigrations(url string) error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(url))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func migrateURL(url string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(url, prefix) {
			return "pgx5://" + strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) FindCategory(ctx context.Context, ownerID, categoryID string) (core.Category, error) {
	var c core.Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, icon, type FROM categories WHERE id = $1 AND owner_id = $2`,
		categoryID, ownerID).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Icon, &c.Type)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context, ownerID string, typ core.TransactionType) ([]core.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, owner_id, name, icon, type FROM categories
	WHERE owner_id = $1 AND ($2 = '' OR type = $2)
	ORDER BY name, id`, ownerID, string(typ))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		var c core.Category
		err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Icon, &c.Type)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return out, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO categories (id, owner_id, name, icon, type) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.OwnerID, c.Name, c.Icon, string(c.Type))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND owner_id = $2`, categoryID, ownerID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrCategoryNotFound
	}
	return nil
}

func (r *Repository) ListResponsibles(ctx context.Context) ([]core.Responsible, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, color FROM responsibles ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list responsibles: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Responsible, error) {
		var p core.Responsible
		err := row.Scan(&p.ID, &p.Name, &p.Color)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan responsibles: %w", err)
	}
	return out, nil
}

func (r *Repository) CreateResponsible(ctx context.Context, p core.Responsible) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO responsibles (id, name, color) VALUES ($1, $2, $3)`, p.ID, p.Name, p.Color)
	if err != nil {
		return fmt.Errorf("create responsible: %w", err)
	}
	return nil
}

func (r *Repository) DeleteResponsible(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM responsibles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete responsible: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrResponsibleNotFound
	}
	return nil
}

var entryColumns = []string{
	"id", "movement_id", "owner_id", "name", "amount_cents", "numerator", "denominator", "description",
	"order_date", "payment_date", "type", "card", "bank", "category_id",
	"created_by", "updated_by", "created_at", "updated_at",
}

// CreateEntries copies the batch and its links inside one transaction.
func (r *Repository) CreateEntries(ctx context.Context, entries []core.Entry, links []core.ResponsibleLink) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"entries"}, entryColumns,
			pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
				e := entries[i]
				return []any{
					e.ID, e.MovementID, e.OwnerID, e.Name, e.Amount.Cents, int32(e.Numerator), int32(e.Denominator), e.Description,
					e.OrderDate.Time, nullableDate(e.PaymentDate), string(e.Type), e.Card, e.Bank, e.CategoryID,
					e.CreatedBy, e.UpdatedBy, e.CreatedAt, e.UpdatedAt,
				}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy entries: %w", err)
		}

		_, err = tx.CopyFrom(ctx, pgx.Identifier{"entry_responsibles"}, []string{"entry_id", "responsible_id"},
			pgx.CopyFromSlice(len(links), func(i int) ([]any, error) {
				return []any{links[i].EntryID, links[i].ResponsibleID}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy entry responsibles: %w", err)
		}

		slog.DebugContext(ctx, "Entries saved to Postgres", "entries", len(entries), "links", len(links))
		return nil
	})
}

func (r *Repository) ListEntries(ctx context.Context, ownerID string, from, to core.Date) ([]core.Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT
		e.id, e.movement_id, e.owner_id, e.name, e.amount_cents, e.numerator, e.denominator, e.description,
		e.order_date, e.payment_date, e.type, e.card, e.bank, e.category_id,
		e.created_by, e.updated_by, e.created_at, e.updated_at,
		COALESCE(array_agg(er.responsible_id ORDER BY er.responsible_id) FILTER (WHERE er.responsible_id IS NOT NULL), '{}')
	FROM entries e
	LEFT JOIN entry_responsibles er ON er.entry_id = e.id
	WHERE e.owner_id = $1 AND e.order_date BETWEEN $2 AND $3
	GROUP BY e.id
	ORDER BY e.order_date DESC, e.created_at DESC, e.numerator ASC`,
		ownerID, from.Time, to.Time)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Entry, error) {
		var (
			e           core.Entry
			orderDate   time.Time
			paymentDate *time.Time
			num, den    int32
		)
		err := row.Scan(&e.ID, &e.MovementID, &e.OwnerID, &e.Name, &e.Amount.Cents, &num, &den, &e.Description,
			&orderDate, &paymentDate, &e.Type, &e.Card, &e.Bank, &e.CategoryID,
			&e.CreatedBy, &e.UpdatedBy, &e.CreatedAt, &e.UpdatedAt, &e.Responsibles)
		if err != nil {
			return e, err
		}
		e.Numerator, e.Denominator = int(num), int(den)
		e.OrderDate = core.DateOf(orderDate)
		if paymentDate != nil {
			e.PaymentDate = core.DateOf(*paymentDate)
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	return out, nil
}

func (r *Repository) DeleteEntry(ctx context.Context, ownerID, entryID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM entries WHERE id = $1 AND owner_id = $2`, entryID, ownerID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrEntryNotFound
	}
	return nil
}

func (r *Repository) SumByCategory(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategorySum, error) {
	rows, err := r.pool.Query(ctx, `SELECT type, category_id, SUM(amount_cents)::BIGINT
	FROM entries
	WHERE owner_id = $1 AND order_date BETWEEN $2 AND $3
	GROUP BY type, category_id
	ORDER BY type, category_id`, ownerID, from.Time, to.Time)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.CategorySum, error) {
		var s core.CategorySum
		err := row.Scan(&s.Type, &s.CategoryID, &s.Total.Cents)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan category sums: %w", err)
	}
	return out, nil
}

func (r *Repository) SumByPaymentPeriod(ctx context.Context, ownerID string, from, to core.Date, g core.Granularity) ([]core.PeriodSum, error) {
	field := "MONTH"
	if g == core.GroupByDay {
		field = "DAY"
	}
	rows, err := r.pool.Query(ctx, `SELECT EXTRACT(`+field+` FROM payment_date)::INT AS bucket,
		COALESCE(SUM(amount_cents) FILTER (WHERE type = 'income'), 0)::BIGINT,
		COALESCE(SUM(amount_cents) FILTER (WHERE type = 'expense'), 0)::BIGINT
	FROM entries
	WHERE owner_id = $1 AND payment_date >= $2 AND payment_date < $3
	GROUP BY bucket
	ORDER BY bucket`, ownerID, from.Time, to.Time)
	if err != nil {
		return nil, fmt.Errorf("sum by payment period: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.PeriodSum, error) {
		var (
			s      core.PeriodSum
			bucket int32
		)
		err := row.Scan(&bucket, &s.Income.Cents, &s.Expense.Cents)
		s.Bucket = int(bucket)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan period sums: %w", err)
	}
	return out, nil
}

func (r *Repository) ListDistinctPaymentDates(ctx context.Context, ownerID string) ([]core.Date, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT payment_date FROM entries
	WHERE owner_id = $1 AND payment_date IS NOT NULL
	ORDER BY payment_date`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list payment dates: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Date, error) {
		var t time.Time
		err := row.Scan(&t)
		return core.DateOf(t), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan payment dates: %w", err)
	}
	return out, nil
}

func (r *Repository) GetSettings(ctx context.Context, ownerID string) (core.UserSettings, error) {
	us := core.UserSettings{OwnerID: ownerID}
	err := r.pool.QueryRow(ctx, `SELECT currency FROM user_settings WHERE owner_id = $1`, ownerID).Scan(&us.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.UserSettings{}, core.ErrSettingsNotFound
	}
	if err != nil {
		return core.UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return us, nil
}

func (r *Repository) SaveSettings(ctx context.Context, us core.UserSettings) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_settings (owner_id, currency, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (owner_id) DO UPDATE SET currency = EXCLUDED.currency, updated_at = now()`,
		us.OwnerID, us.Currency)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func nullableDate(d core.Date) *time.Time {
	if d.IsEmpty() {
		return nil
	}
	t := d.Time
	return &t
}

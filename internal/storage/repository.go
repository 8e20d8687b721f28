package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"parcelas/internal/core"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// dsn enables foreign keys on every pooled connection so join rows cascade.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) FindCategory(ctx context.Context, ownerID, categoryID string) (core.Category, error) {
	var c core.Category
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, icon, type FROM categories WHERE id = ? AND owner_id = ?`,
		categoryID, ownerID).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Icon, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	c.Type = core.TransactionType(typ)
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID string, typ core.TransactionType) ([]core.Category, error) {
	query := `SELECT id, owner_id, name, icon, type FROM categories WHERE owner_id = ?`
	args := []any{ownerID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var c core.Category
		var t string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Icon, &t); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(t)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, owner_id, name, icon, type) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.Icon, string(c.Type))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// DeleteCategory leaves entries that reference the category untouched.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND owner_id = ?`, categoryID, ownerID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return affectedOrNotFound(res, core.ErrCategoryNotFound)
}

func (r *SQLiteRepository) ListResponsibles(ctx context.Context) ([]core.Responsible, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color FROM responsibles ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list responsibles: %w", err)
	}
	defer rows.Close()

	out := []core.Responsible{}
	for rows.Next() {
		var p core.Responsible
		if err := rows.Scan(&p.ID, &p.Name, &p.Color); err != nil {
			return nil, fmt.Errorf("scan responsible: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateResponsible(ctx context.Context, p core.Responsible) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO responsibles (id, name, color) VALUES (?, ?, ?)`, p.ID, p.Name, p.Color)
	if err != nil {
		return fmt.Errorf("create responsible: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteResponsible(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM responsibles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete responsible: %w", err)
	}
	return affectedOrNotFound(res, core.ErrResponsibleNotFound)
}

// CreateEntries inserts every entry and link in a single transaction.
func (r *SQLiteRepository) CreateEntries(ctx context.Context, entries []core.Entry, links []core.ResponsibleLink) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	entryStmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (
		id, movement_id, owner_id, name, amount_cents, numerator, denominator, description,
		order_date, payment_date, type, card, bank, category_id,
		created_by, updated_by, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer entryStmt.Close()

	for _, e := range entries {
		_, err := entryStmt.ExecContext(ctx,
			e.ID, e.MovementID, e.OwnerID, e.Name, e.Amount.Cents, e.Numerator, e.Denominator, e.Description,
			e.OrderDate.String(), nullableDate(e.PaymentDate), string(e.Type), e.Card, e.Bank, e.CategoryID,
			e.CreatedBy, e.UpdatedBy, e.CreatedAt.UTC().Format(timestampLayout), e.UpdatedAt.UTC().Format(timestampLayout))
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	linkStmt, err := tx.PrepareContext(ctx, `INSERT INTO entry_responsibles (entry_id, responsible_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare link insert: %w", err)
	}
	defer linkStmt.Close()

	for _, l := range links {
		if _, err := linkStmt.ExecContext(ctx, l.EntryID, l.ResponsibleID); err != nil {
			return fmt.Errorf("link entry %s to responsible %s: %w", l.EntryID, l.ResponsibleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entries: %w", err)
	}

	slog.DebugContext(ctx, "Entries saved to SQLite", "entries", len(entries), "links", len(links))
	return nil
}

func (r *SQLiteRepository) ListEntries(ctx context.Context, ownerID string, from, to core.Date) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, movement_id, owner_id, name, amount_cents, numerator, denominator, description,
		order_date, payment_date, type, card, bank, category_id,
		created_by, updated_by, created_at, updated_at
	FROM entries
	WHERE owner_id = ? AND order_date BETWEEN ? AND ?
	ORDER BY order_date DESC, created_at DESC, numerator ASC`,
		ownerID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := []core.Entry{}
	index := map[string]int{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	linkRows, err := r.db.QueryContext(ctx, `SELECT er.entry_id, er.responsible_id
	FROM entry_responsibles er
	JOIN entries e ON e.id = er.entry_id
	WHERE e.owner_id = ? AND e.order_date BETWEEN ? AND ?
	ORDER BY er.responsible_id`,
		ownerID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list entry responsibles: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var entryID, responsibleID string
		if err := linkRows.Scan(&entryID, &responsibleID); err != nil {
			return nil, fmt.Errorf("scan entry responsible: %w", err)
		}
		if i, ok := index[entryID]; ok {
			out[i].Responsibles = append(out[i].Responsibles, responsibleID)
		}
	}
	return out, linkRows.Err()
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, ownerID, entryID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ? AND owner_id = ?`, entryID, ownerID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return affectedOrNotFound(res, core.ErrEntryNotFound)
}

func (r *SQLiteRepository) SumByCategory(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategorySum, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT type, category_id, SUM(amount_cents)
	FROM entries
	WHERE owner_id = ? AND order_date BETWEEN ? AND ?
	GROUP BY type, category_id
	ORDER BY type, category_id`,
		ownerID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	out := []core.CategorySum{}
	for rows.Next() {
		var s core.CategorySum
		var typ string
		if err := rows.Scan(&typ, &s.CategoryID, &s.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		s.Type = core.TransactionType(typ)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SumByPaymentPeriod(ctx context.Context, ownerID string, from, to core.Date, g core.Granularity) ([]core.PeriodSum, error) {
	bucket := `CAST(strftime('%m', payment_date) AS INTEGER)`
	if g == core.GroupByDay {
		bucket = `CAST(strftime('%d', payment_date) AS INTEGER)`
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+bucket+` AS bucket,
		COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
		COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0)
	FROM entries
	WHERE owner_id = ? AND payment_date IS NOT NULL AND payment_date >= ? AND payment_date < ?
	GROUP BY bucket
	ORDER BY bucket`,
		ownerID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("sum by payment period: %w", err)
	}
	defer rows.Close()

	out := []core.PeriodSum{}
	for rows.Next() {
		var s core.PeriodSum
		if err := rows.Scan(&s.Bucket, &s.Income.Cents, &s.Expense.Cents); err != nil {
			return nil, fmt.Errorf("scan period sum: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListDistinctPaymentDates(ctx context.Context, ownerID string) ([]core.Date, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT payment_date FROM entries
	WHERE owner_id = ? AND payment_date IS NOT NULL
	ORDER BY payment_date`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list payment dates: %w", err)
	}
	defer rows.Close()

	out := []core.Date{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan payment date: %w", err)
		}
		d, err := core.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetSettings(ctx context.Context, ownerID string) (core.UserSettings, error) {
	us := core.UserSettings{OwnerID: ownerID}
	err := r.db.QueryRowContext(ctx, `SELECT currency FROM user_settings WHERE owner_id = ?`, ownerID).Scan(&us.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserSettings{}, core.ErrSettingsNotFound
	}
	if err != nil {
		return core.UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return us, nil
}

func (r *SQLiteRepository) SaveSettings(ctx context.Context, us core.UserSettings) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_settings (owner_id, currency, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (owner_id) DO UPDATE SET currency = excluded.currency, updated_at = excluded.updated_at`,
		us.OwnerID, us.Currency, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (core.Entry, error) {
	var (
		e                    core.Entry
		orderDate, typ       string
		paymentDate          sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&e.ID, &e.MovementID, &e.OwnerID, &e.Name, &e.Amount.Cents, &e.Numerator, &e.Denominator, &e.Description,
		&orderDate, &paymentDate, &typ, &e.Card, &e.Bank, &e.CategoryID,
		&e.CreatedBy, &e.UpdatedBy, &createdAt, &updatedAt)
	if err != nil {
		return core.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	if e.OrderDate, err = core.ParseDate(orderDate); err != nil {
		return core.Entry{}, err
	}
	if paymentDate.Valid && paymentDate.String != "" {
		if e.PaymentDate, err = core.ParseDate(paymentDate.String); err != nil {
			return core.Entry{}, err
		}
	}
	e.Type = core.TransactionType(typ)
	e.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	e.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
	e.Responsibles = []string{}
	return e, nil
}

func nullableDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.String()
}

func affectedOrNotFound(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

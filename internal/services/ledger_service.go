package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"parcelas/internal/amqp"
	"parcelas/internal/core"
	applog "parcelas/internal/log"
	"parcelas/internal/ports"
)

// EventPublisher broadcasts ledger changes to other instances.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService orchestrates ledger operations across storage, the
// aggregation cache and the event bus.
type LedgerService struct {
	repo       ports.Repository
	generator  *InstallmentGenerator
	aggregator *Aggregator
	catalog    *PeriodCatalog
	publisher  EventPublisher
	logger     *applog.StructuredLogger
}

type LedgerOption func(*LedgerService)

// WithPublisher enables event publishing. A nil publisher is ignored.
func WithPublisher(p EventPublisher) LedgerOption {
	return func(s *LedgerService) {
		s.publisher = p
	}
}

// WithAggregator replaces the default, uncached aggregator.
func WithAggregator(a *Aggregator) LedgerOption {
	return func(s *LedgerService) {
		if a != nil {
			s.aggregator = a
		}
	}
}

func WithLogger(l *applog.Logger) LedgerOption {
	return func(s *LedgerService) {
		if l != nil {
			s.logger = applog.NewStructuredLogger(l)
		}
	}
}

func NewLedgerService(repo ports.Repository, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		repo:       repo,
		generator:  NewInstallmentGenerator(repo, repo),
		aggregator: NewAggregator(repo, repo, repo),
		catalog:    NewPeriodCatalog(repo),
		logger:     applog.NewStructuredLogger(applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentLedger)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aggregator exposes the aggregation engine, for cache invalidation by event consumers.
func (s *LedgerService) Aggregator() *Aggregator {
	return s.aggregator
}

// CreateMovement generates and stores the installments of req, then
// notifies other instances. Publishing failures never fail the request.
func (s *LedgerService) CreateMovement(ctx context.Context, ownerID string, req core.MovementRequest) ([]core.Entry, error) {
	entries, err := s.generator.Generate(ctx, req, ownerID)
	if err != nil {
		return nil, err
	}
	s.aggregator.Invalidate(ownerID)

	movementID := entries[0].MovementID
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	s.publish(ctx, amqp.NewEntriesCreatedEvent(ownerID, movementID, ids))
	s.logger.LogMovementCreated(ctx, ownerID, movementID, req.Amount.Cents, len(entries), req.CategoryID)
	return entries, nil
}

func (s *LedgerService) ListEntries(ctx context.Context, ownerID string, from, to core.Date) ([]core.Entry, error) {
	if err := checkRange(ownerID, from, to); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, ownerID, from, to)
	if err != nil {
		return nil, core.WrapStorage("list entries", err)
	}
	return entries, nil
}

// DeleteEntry removes one installment owned by ownerID.
func (s *LedgerService) DeleteEntry(ctx context.Context, ownerID, entryID string) error {
	if err := s.repo.DeleteEntry(ctx, ownerID, entryID); err != nil {
		return core.WrapStorage("delete entry", err)
	}
	s.aggregator.Invalidate(ownerID)
	s.publish(ctx, amqp.NewEntryDeletedEvent(ownerID, entryID))
	return nil
}

func (s *LedgerService) CategoryStats(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategoryStat, error) {
	return s.aggregator.CategoryStats(ctx, ownerID, from, to)
}

func (s *LedgerService) BalanceStats(ctx context.Context, ownerID string, from, to core.Date) (core.BalanceStats, error) {
	return s.aggregator.BalanceStats(ctx, ownerID, from, to)
}

// Overview reads the category breakdown once and derives the balance from
// it, so both halves describe the same snapshot. The owner's currency is
// loaded alongside.
func (s *LedgerService) Overview(ctx context.Context, ownerID string, from, to core.Date) (core.Overview, error) {
	if err := checkRange(ownerID, from, to); err != nil {
		return core.Overview{}, err
	}
	var (
		stats []core.CategoryStat
		us    core.UserSettings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.aggregator.CategoryStats(gctx, ownerID, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		us, err = s.GetSettings(gctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Overview{}, err
	}
	return core.Overview{
		Balance:    core.NewBalanceStats(stats),
		Categories: stats,
		Currency:   us.Currency,
	}, nil
}

func (s *LedgerService) PeriodSeries(ctx context.Context, ownerID string, tf core.Timeframe, p core.Period) ([]core.HistoryPoint, error) {
	return s.aggregator.PeriodSeries(ctx, ownerID, tf, p)
}

func (s *LedgerService) DistinctYears(ctx context.Context, ownerID string) ([]int, error) {
	return s.catalog.DistinctYears(ctx, ownerID)
}

func (s *LedgerService) ListCategories(ctx context.Context, ownerID string, typ core.TransactionType) ([]core.Category, error) {
	if typ != "" && !typ.IsValid() {
		return nil, core.NewValidationError("type", "must be income or expense")
	}
	cats, err := s.repo.ListCategories(ctx, ownerID, typ)
	if err != nil {
		return nil, core.WrapStorage("list categories", err)
	}
	return cats, nil
}

// CreateCategory stores a new category for ownerID. Names are unique per owner and type.
func (s *LedgerService) CreateCategory(ctx context.Context, ownerID string, c core.Category) (core.Category, error) {
	c.ID = uuid.NewString()
	c.OwnerID = ownerID
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	existing, err := s.repo.ListCategories(ctx, ownerID, c.Type)
	if err != nil {
		return core.Category{}, core.WrapStorage("list categories", err)
	}
	for _, e := range existing {
		if strings.EqualFold(e.Name, c.Name) {
			return core.Category{}, core.NewValidationError("name", fmt.Sprintf("category %q already exists", c.Name))
		}
	}

	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return core.Category{}, core.WrapStorage("create category", err)
	}
	return c, nil
}

// DeleteCategory keeps the category's entries; their stats lose the display fields.
func (s *LedgerService) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	if err := s.repo.DeleteCategory(ctx, ownerID, categoryID); err != nil {
		return core.WrapStorage("delete category", err)
	}
	s.aggregator.Invalidate(ownerID)
	s.publish(ctx, amqp.NewCategoryDeletedEvent(ownerID, categoryID))
	return nil
}

func (s *LedgerService) ListResponsibles(ctx context.Context) ([]core.Responsible, error) {
	rs, err := s.repo.ListResponsibles(ctx)
	if err != nil {
		return nil, core.WrapStorage("list responsibles", err)
	}
	return rs, nil
}

func (s *LedgerService) CreateResponsible(ctx context.Context, r core.Responsible) (core.Responsible, error) {
	r.ID = uuid.NewString()
	r.Name = strings.TrimSpace(r.Name)
	r.Color = strings.TrimSpace(r.Color)
	if err := r.Validate(); err != nil {
		return core.Responsible{}, err
	}
	if err := s.repo.CreateResponsible(ctx, r); err != nil {
		return core.Responsible{}, core.WrapStorage("create responsible", err)
	}
	return r, nil
}

func (s *LedgerService) DeleteResponsible(ctx context.Context, id string) error {
	if err := s.repo.DeleteResponsible(ctx, id); err != nil {
		return core.WrapStorage("delete responsible", err)
	}
	return nil
}

// GetSettings returns the owner's settings, or the defaults when none were saved.
func (s *LedgerService) GetSettings(ctx context.Context, ownerID string) (core.UserSettings, error) {
	us, err := s.repo.GetSettings(ctx, ownerID)
	if errors.Is(err, core.ErrSettingsNotFound) {
		return core.UserSettings{OwnerID: ownerID, Currency: core.DefaultCurrency}, nil
	}
	if err != nil {
		return core.UserSettings{}, core.WrapStorage("get settings", err)
	}
	return us, nil
}

func (s *LedgerService) UpdateSettings(ctx context.Context, ownerID string, us core.UserSettings) (core.UserSettings, error) {
	us.OwnerID = ownerID
	us.Currency = strings.ToUpper(strings.TrimSpace(us.Currency))
	if err := us.Validate(); err != nil {
		return core.UserSettings{}, err
	}
	if err := s.repo.SaveSettings(ctx, us); err != nil {
		return core.UserSettings{}, core.WrapStorage("save settings", err)
	}
	return us, nil
}

// Ping reports whether storage is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping ledger event", "kind", ev.Kind)
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.LogError(ctx, "Failed to publish ledger event", err, applog.ComponentAMQP, applog.OpPublish,
			applog.NewFields().WithOwner(ev.OwnerID))
	}
}

// Close closes storage; the publisher is owned by the caller.
func (s *LedgerService) Close() error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}

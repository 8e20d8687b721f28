package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"parcelas/internal/cache"
	"parcelas/internal/core"
	"parcelas/internal/ports"
)

// Aggregator computes category statistics and dense history series from
// grouped storage sums. Reads never modify storage.
type Aggregator struct {
	totals     ports.CategoryTotalsReader
	categories ports.CategoryLister
	payments   ports.PaymentSumsReader

	stats  cache.Cache[[]core.CategoryStat]
	series cache.Cache[[]core.HistoryPoint]
	group  singleflight.Group

	// gens counts invalidations per owner; a load only fills the cache if
	// no invalidation happened while it ran.
	mu   sync.Mutex
	gens map[string]uint64
}

// fillTimeout bounds a shared cache fill once it no longer follows the
// context of the caller that started it.
const fillTimeout = 30 * time.Second

type AggregatorOption func(*Aggregator)

// WithCache memoizes results per owner for ttl. Writes must call Invalidate.
func WithCache(size int, ttl time.Duration, manager *cache.Manager) AggregatorOption {
	return func(a *Aggregator) {
		stats := cache.NewLRUCache[[]core.CategoryStat](size, ttl)
		series := cache.NewLRUCache[[]core.HistoryPoint](size, ttl)
		if manager != nil {
			manager.Register(stats)
			manager.Register(series)
		}
		a.stats, a.series = stats, series
	}
}

func NewAggregator(totals ports.CategoryTotalsReader, categories ports.CategoryLister, payments ports.PaymentSumsReader, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{totals: totals, categories: categories, payments: payments, gens: map[string]uint64{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Invalidate drops every cached result of ownerID.
func (a *Aggregator) Invalidate(ownerID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gens[ownerID]++

	n := 0
	prefix := ownerPrefix(ownerID)
	if a.stats != nil {
		n += a.stats.DeletePrefix(prefix)
	}
	if a.series != nil {
		n += a.series.DeletePrefix(prefix)
	}
	return n
}

func ownerPrefix(ownerID string) string {
	return strconv.Quote(ownerID) + "|"
}

// CategoryStats totals ownerID's entries with order date in [from, to] by
// (type, category), largest total first.
func (a *Aggregator) CategoryStats(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategoryStat, error) {
	if err := checkRange(ownerID, from, to); err != nil {
		return nil, err
	}
	key := ownerPrefix(ownerID) + "stats|" + from.String() + "|" + to.String()
	return cached(ctx, a, a.stats, ownerID, key, func(ctx context.Context) ([]core.CategoryStat, error) {
		return a.loadCategoryStats(ctx, ownerID, from, to)
	})
}

func (a *Aggregator) loadCategoryStats(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategoryStat, error) {
	sums, err := a.totals.SumByCategory(ctx, ownerID, from, to)
	if err != nil {
		return nil, core.WrapStorage("sum by category", err)
	}
	cats, err := a.categories.ListCategories(ctx, ownerID, "")
	if err != nil {
		return nil, core.WrapStorage("list categories", err)
	}
	byID := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	stats := make([]core.CategoryStat, 0, len(sums))
	for _, s := range sums {
		// Deleted categories keep their group with empty display fields.
		c := byID[s.CategoryID]
		stats = append(stats, core.CategoryStat{
			Type:         s.Type,
			CategoryID:   s.CategoryID,
			CategoryName: c.Name,
			CategoryIcon: c.Icon,
			Total:        s.Total,
		})
	}
	sortCategoryStats(stats)
	return stats, nil
}

func sortCategoryStats(stats []core.CategoryStat) {
	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Total.Cents != b.Total.Cents {
			return a.Total.Cents > b.Total.Cents
		}
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		return a.Type < b.Type
	})
}

// BalanceStats folds the same grouped totals CategoryStats uses.
func (a *Aggregator) BalanceStats(ctx context.Context, ownerID string, from, to core.Date) (core.BalanceStats, error) {
	stats, err := a.CategoryStats(ctx, ownerID, from, to)
	if err != nil {
		return core.BalanceStats{}, err
	}
	return core.NewBalanceStats(stats), nil
}

// PeriodSeries returns a dense payment-date series: 12 monthly points for a
// year, or one point per day with a running balance for a month.
func (a *Aggregator) PeriodSeries(ctx context.Context, ownerID string, tf core.Timeframe, p core.Period) ([]core.HistoryPoint, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, core.NewValidationError("owner", "must not be empty")
	}
	if _, err := core.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}
	if err := p.Validate(tf); err != nil {
		return nil, err
	}
	if tf == core.TimeframeYear {
		p.Month = 0
	}

	key := fmt.Sprintf("%sseries|%s|%d|%d", ownerPrefix(ownerID), tf, p.Year, p.Month)
	return cached(ctx, a, a.series, ownerID, key, func(ctx context.Context) ([]core.HistoryPoint, error) {
		return a.loadSeries(ctx, ownerID, tf, p)
	})
}

func (a *Aggregator) loadSeries(ctx context.Context, ownerID string, tf core.Timeframe, p core.Period) ([]core.HistoryPoint, error) {
	from, to := p.Range(tf)
	g := core.GroupByMonth
	if tf == core.TimeframeMonth {
		g = core.GroupByDay
	}
	sums, err := a.payments.SumByPaymentPeriod(ctx, ownerID, from, to, g)
	if err != nil {
		return nil, core.WrapStorage("sum by payment period", err)
	}
	if tf == core.TimeframeMonth {
		return densifyMonth(p.Year, p.Month, sums), nil
	}
	return densifyYear(p.Year, sums), nil
}

func densifyYear(year int, sums []core.PeriodSum) []core.HistoryPoint {
	points := make([]core.HistoryPoint, 12)
	for i := range points {
		points[i] = core.HistoryPoint{Year: year, Month: i + 1}
	}
	for _, s := range sums {
		if s.Bucket < 1 || s.Bucket > 12 {
			continue
		}
		pt := &points[s.Bucket-1]
		pt.Income = pt.Income.Add(s.Income)
		pt.Expense = pt.Expense.Add(s.Expense)
	}
	return points
}

func densifyMonth(year, month int, sums []core.PeriodSum) []core.HistoryPoint {
	days := core.DaysInMonth(year, month)
	points := make([]core.HistoryPoint, days)
	for i := range points {
		points[i] = core.HistoryPoint{Year: year, Month: month, Day: i + 1}
	}
	for _, s := range sums {
		if s.Bucket < 1 || s.Bucket > days {
			continue
		}
		pt := &points[s.Bucket-1]
		pt.Income = pt.Income.Add(s.Income)
		pt.Expense = pt.Expense.Add(s.Expense)
	}
	var running core.Money
	for i := range points {
		running = running.Add(points[i].Income).Sub(points[i].Expense)
		balance := running
		points[i].MonthBalance = &balance
	}
	return points
}

func (a *Aggregator) generation(ownerID string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gens[ownerID]
}

// cached serves key from c, filling it at most once concurrently.
//
// The shared fill runs on a context detached from any single caller and
// bounded by fillTimeout, so one caller giving up does not fail the others.
// Each caller still returns as soon as its own ctx is done.
func cached[T any](ctx context.Context, a *Aggregator, c cache.Cache[T], ownerID, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return load(ctx)
	}
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	gen := a.generation(ownerID)
	ch := a.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		v, err := load(fillCtx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		if a.gens[ownerID] == gen {
			c.Set(key, v)
		}
		a.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func checkRange(ownerID string, from, to core.Date) error {
	if strings.TrimSpace(ownerID) == "" {
		return core.NewValidationError("owner", "must not be empty")
	}
	if from.IsEmpty() {
		return core.NewValidationError("from", "must not be empty")
	}
	if to.IsEmpty() {
		return core.NewValidationError("to", "must not be empty")
	}
	if to.Before(from.Time) {
		return core.NewValidationError("to", "must not be before from")
	}
	return nil
}

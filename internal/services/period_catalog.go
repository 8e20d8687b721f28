package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"parcelas/internal/core"
	"parcelas/internal/ports"
)

// PeriodCatalog lists the years a user can browse in history views.
type PeriodCatalog struct {
	dates ports.PaymentDateLister
	now   func() time.Time
}

func NewPeriodCatalog(dates ports.PaymentDateLister) *PeriodCatalog {
	return &PeriodCatalog{dates: dates, now: time.Now}
}

// DistinctYears returns the ascending years holding at least one payment
// date of ownerID, or just the current year when there are none.
func (c *PeriodCatalog) DistinctYears(ctx context.Context, ownerID string) ([]int, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, core.NewValidationError("owner", "must not be empty")
	}
	dates, err := c.dates.ListDistinctPaymentDates(ctx, ownerID)
	if err != nil {
		return nil, core.WrapStorage("list payment dates", err)
	}

	seen := make(map[int]struct{}, len(dates))
	years := make([]int, 0, len(dates))
	for _, d := range dates {
		if d.IsEmpty() {
			continue
		}
		if _, ok := seen[d.Year()]; ok {
			continue
		}
		seen[d.Year()] = struct{}{}
		years = append(years, d.Year())
	}
	sort.Ints(years)
	if len(years) == 0 {
		return []int{c.now().UTC().Year()}, nil
	}
	return years, nil
}

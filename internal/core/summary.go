package core

import "fmt"

const (
	TimeframeYear  Timeframe = "year"
	TimeframeMonth Timeframe = "month"
)

const (
	MinSeriesYear = 2000
	MaxSeriesYear = 3000
)

// Granularity selects the bucket of a payment-date grouped sum.
type Granularity int

const (
	GroupByMonth Granularity = iota
	GroupByDay
)

type Timeframe string

// Period identifies the year, and for month series the month (1-12), of a history query.
type Period struct {
	Year  int
	Month int
}

// CategoryStat is the total of one (type, category) group.
type CategoryStat struct {
	Type         TransactionType `json:"type"`
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	CategoryIcon string          `json:"categoryIcon"`
	Total        Money           `json:"total"`
}

// CategorySum is a sparse storage row before category fields are joined.
type CategorySum struct {
	Type       TransactionType
	CategoryID string
	Total      Money
}

// PeriodSum is a sparse storage row of a payment-date grouped query.
// Bucket is the month (1-12) or the day of month (1-31).
type PeriodSum struct {
	Bucket  int
	Income  Money
	Expense Money
}

// HistoryPoint is one element of a dense history series.
type HistoryPoint struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	Day          int    `json:"day,omitempty"`
	Income       Money  `json:"income"`
	Expense      Money  `json:"expense"`
	MonthBalance *Money `json:"monthBalance,omitempty"`
}

type BalanceStats struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

type Overview struct {
	Balance    BalanceStats   `json:"balance"`
	Categories []CategoryStat `json:"categories"`
	Currency   string         `json:"currency"`
}

func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case TimeframeYear, TimeframeMonth:
		return Timeframe(s), nil
	}
	return "", NewValidationError("timeframe", fmt.Sprintf("unknown timeframe %q", s))
}

// Validate checks the period bounds required by tf.
func (p Period) Validate(tf Timeframe) error {
	if p.Year < MinSeriesYear || p.Year > MaxSeriesYear {
		return NewValidationError("year", fmt.Sprintf("must be between %d and %d", MinSeriesYear, MaxSeriesYear))
	}
	if tf == TimeframeMonth && (p.Month < 1 || p.Month > 12) {
		return NewValidationError("month", "must be between 1 and 12")
	}
	return nil
}

// Range returns the half-open [from, to) payment-date range covered by the period.
func (p Period) Range(tf Timeframe) (Date, Date) {
	if tf == TimeframeMonth {
		from := NewDate(p.Year, p.Month, 1)
		return from, from.FirstOfMonthAfter(1)
	}
	return NewDate(p.Year, 1, 1), NewDate(p.Year+1, 1, 1)
}

// NewBalanceStats folds category totals into income, expense and their difference.
func NewBalanceStats(sums []CategoryStat) BalanceStats {
	var b BalanceStats
	for _, s := range sums {
		switch s.Type {
		case Income:
			b.Income = b.Income.Add(s.Total)
		case Expense:
			b.Expense = b.Expense.Add(s.Total)
		}
	}
	b.Balance = b.Income.Sub(b.Expense)
	return b
}

package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxInstallments bounds the installment count of a single movement (30 years of monthly payments).
const MaxInstallments = 360

const dateLayout = "2006-01-02"

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID      string          `json:"id"`
		OwnerID string          `json:"-"`
		Name    string          `json:"name"`
		Icon    string          `json:"icon"`
		Type    TransactionType `json:"type"`
	}

	Responsible struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	}

	// MovementRequest is what a user submits; it is never stored as-is.
	MovementRequest struct {
		Name         string          `json:"name"`
		Amount       Money           `json:"amount"`
		Denominator  int             `json:"denominator"`
		Description  string          `json:"description,omitempty"`
		CategoryID   string          `json:"categoryId"`
		OrderDate    Date            `json:"date"`
		PaymentDate  Date            `json:"paymentDate,omitempty"` // zero when not supplied
		Type         TransactionType `json:"type"`
		Card         string          `json:"card,omitempty"`
		Bank         string          `json:"bank,omitempty"`
		Responsibles []string        `json:"responsibles"`
	}

	// Entry is one persisted installment of a movement.
	Entry struct {
		ID           string          `json:"id"`
		MovementID   string          `json:"movementId"`
		OwnerID      string          `json:"-"`
		Name         string          `json:"name"`
		Amount       Money           `json:"amount"`
		Numerator    int             `json:"numerator"`
		Denominator  int             `json:"denominator"`
		Description  string          `json:"description,omitempty"`
		OrderDate    Date            `json:"date"`
		PaymentDate  Date            `json:"paymentDate"`
		Type         TransactionType `json:"type"`
		Card         string          `json:"card,omitempty"`
		Bank         string          `json:"bank,omitempty"`
		CategoryID   string          `json:"categoryId"`
		Responsibles []string        `json:"responsibles"`
		CreatedBy    string          `json:"createdBy"`
		UpdatedBy    string          `json:"updatedBy"`
		CreatedAt    time.Time       `json:"createdAt"`
		UpdatedAt    time.Time       `json:"updatedAt"`
	}

	// ResponsibleLink is one row of the entry/responsible join relation.
	ResponsibleLink struct {
		EntryID       string
		ResponsibleID string
	}

	UserSettings struct {
		OwnerID  string `json:"-"`
		Currency string `json:"currency"`
	}
)

// IsValid reports whether t is one of the known movement types.
func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

// Validate rejects the zero date and years outside the range the period
// catalog can report on.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if y := d.Year(); y < MinSeriesYear || y > MaxSeriesYear {
		return ErrDateOutOfRange
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// FirstOfMonthAfter returns the first day of the month that is months after d's month.
func (d Date) FirstOfMonthAfter(months int) Date {
	return Date{Time: time.Date(d.Year(), time.Month(d.Month()+months), 1, 0, 0, 0, 0, time.UTC)}
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysInMonth returns the number of days of month (1-12) in year.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps from clients that send ISO strings, keep only the UTC day.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (r MovementRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name", "must not be empty")
	}
	if utf8.RuneCountInString(r.Name) > 200 {
		return NewValidationError("name", "too long (max 200 characters)")
	}
	if err := r.Amount.Validate(); err != nil {
		return NewValidationError("amount", "must be greater than zero")
	}
	if r.Denominator < 1 || r.Denominator > MaxInstallments {
		return NewValidationError("denominator", fmt.Sprintf("must be between 1 and %d", MaxInstallments))
	}
	if len(r.Description) > 200 {
		return NewValidationError("description", "too long (max 200 characters)")
	}
	if strings.TrimSpace(r.CategoryID) == "" {
		return NewValidationError("categoryId", "must not be empty")
	}
	if err := r.OrderDate.Validate(); err != nil {
		return NewValidationError("date", err.Error())
	}
	if !r.PaymentDate.IsEmpty() {
		if err := r.PaymentDate.Validate(); err != nil {
			return NewValidationError("paymentDate", err.Error())
		}
	}
	if !r.Type.IsValid() {
		return NewValidationError("type", "must be income or expense")
	}
	if r.Type == Expense && r.PaymentDate.IsEmpty() {
		// The last installment is paid on the first of the month Denominator months after ordering.
		if last := r.OrderDate.FirstOfMonthAfter(r.Denominator); last.Year() > MaxSeriesYear {
			return NewValidationError("denominator", fmt.Sprintf("last installment falls after year %d", MaxSeriesYear))
		}
	}
	if len(r.Card) > 50 {
		return NewValidationError("card", "too long (max 50 characters)")
	}
	if len(r.Bank) > 50 {
		return NewValidationError("bank", "too long (max 50 characters)")
	}
	if len(r.Responsibles) == 0 {
		return NewValidationError("responsibles", "at least one responsible is required")
	}
	seen := make(map[string]struct{}, len(r.Responsibles))
	for _, id := range r.Responsibles {
		if strings.TrimSpace(id) == "" {
			return NewValidationError("responsibles", "empty responsible id")
		}
		if _, dup := seen[id]; dup {
			return NewValidationError("responsibles", "duplicate responsible "+id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return NewValidationError("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > 50 {
		return NewValidationError("name", "too long (max 50 characters)")
	}
	if utf8.RuneCountInString(c.Icon) > 20 {
		return NewValidationError("icon", "too long (max 20 characters)")
	}
	if !c.Type.IsValid() {
		return NewValidationError("type", "must be income or expense")
	}
	return nil
}

func (r Responsible) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(r.Name))
	if n < 3 || n > 20 {
		return NewValidationError("name", "must be between 3 and 20 characters")
	}
	if len(r.Color) > 20 {
		return NewValidationError("color", "too long (max 20 characters)")
	}
	return nil
}

func (s UserSettings) Validate() error {
	if _, ok := LookupCurrency(s.Currency); !ok {
		return NewValidationError("currency", "unsupported currency "+s.Currency)
	}
	return nil
}

package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{NewDate(2000, 1, 1), true},
		{NewDate(3000, 12, 31), true},
		{NewDate(1999, 12, 31), false},
		{NewDate(3001, 1, 1), false},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
	if err := NewDate(1999, 1, 1).Validate(); !errors.Is(err, ErrDateOutOfRange) {
		t.Fatalf("expected ErrDateOutOfRange, got %v", err)
	}
}

func TestFirstOfMonthAfter(t *testing.T) {
	cases := []struct {
		from   Date
		months int
		want   string
	}{
		{NewDate(2024, 1, 15), 1, "2024-02-01"},
		{NewDate(2024, 1, 31), 2, "2024-03-01"},
		{NewDate(2024, 11, 30), 2, "2025-01-01"},
		{NewDate(2024, 12, 1), 12, "2025-12-01"},
	}
	for _, tc := range cases {
		if got := tc.from.FirstOfMonthAfter(tc.months).String(); got != tc.want {
			t.Fatalf("%s +%d: want %s, got %s", tc.from, tc.months, tc.want, got)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct{ y, m, want int }{
		{2024, 2, 29},
		{2023, 2, 28},
		{2024, 4, 30},
		{2024, 12, 31},
	}
	for _, tc := range cases {
		if got := DaysInMonth(tc.y, tc.m); got != tc.want {
			t.Fatalf("%d-%02d: want %d, got %d", tc.y, tc.m, tc.want, got)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2024-03-05"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != "2024-03-05" {
		t.Fatalf("got %s", d)
	}
	if err := json.Unmarshal([]byte(`"2024-03-05T23:30:00-03:00"`), &d); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if d.String() != "2024-03-06" {
		t.Fatalf("timestamp should be truncated to the UTC day, got %s", d)
	}
	out, _ := json.Marshal(NewDate(2024, 1, 2))
	if string(out) != `"2024-01-02"` {
		t.Fatalf("marshal: %s", out)
	}
}

func validMovement() MovementRequest {
	return MovementRequest{
		Name:         "TV",
		Amount:       Money{Cents: 30000},
		Denominator:  3,
		CategoryID:   "cat-1",
		OrderDate:    NewDate(2024, 1, 15),
		Type:         Expense,
		Responsibles: []string{"r1"},
	}
}

func TestMovementRequestValidate(t *testing.T) {
	if err := validMovement().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := map[string]func(*MovementRequest){
		"empty name":        func(r *MovementRequest) { r.Name = "  " },
		"zero amount":       func(r *MovementRequest) { r.Amount = Money{} },
		"zero denominator":  func(r *MovementRequest) { r.Denominator = 0 },
		"huge denominator":  func(r *MovementRequest) { r.Denominator = MaxInstallments + 1 },
		"missing category":  func(r *MovementRequest) { r.CategoryID = "" },
		"zero order date":   func(r *MovementRequest) { r.OrderDate = Date{} },
		"bad type":          func(r *MovementRequest) { r.Type = "transfer" },
		"no responsibles":   func(r *MovementRequest) { r.Responsibles = nil },
		"dup responsibles":  func(r *MovementRequest) { r.Responsibles = []string{"a", "a"} },
		"blank responsible": func(r *MovementRequest) { r.Responsibles = []string{""} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validMovement()
			mutate(&r)
			err := r.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCategoryAndResponsibleValidate(t *testing.T) {
	if err := (Category{Name: "Food", Icon: "🍔", Type: Expense}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: "", Type: Expense}).Validate(); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := (Responsible{Name: "Ana", Color: "#ff0000"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Responsible{Name: "Al"}).Validate(); err == nil {
		t.Fatalf("expected error for short name")
	}
}

func TestWrapStorage(t *testing.T) {
	if err := WrapStorage("op", nil); err != nil {
		t.Fatalf("nil should stay nil")
	}
	if err := WrapStorage("op", ErrCategoryNotFound); err != ErrCategoryNotFound {
		t.Fatalf("sentinel should pass through, got %v", err)
	}
	boom := errors.New("disk full")
	err := WrapStorage("insert", boom)
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "insert" || !errors.Is(err, boom) {
		t.Fatalf("expected StorageError wrapping cause, got %v", err)
	}
	if again := WrapStorage("outer", err); again != err {
		t.Fatalf("StorageError should not be wrapped twice")
	}
}

package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestMoneySplit(t *testing.T) {
	cases := []struct {
		name  string
		total int64
		n     int
		want  []int64
	}{
		{"even", 30000, 3, []int64{10000, 10000, 10000}},
		{"remainder to last", 10000, 3, []int64{3333, 3333, 3334}},
		{"single", 1, 1, []int64{1}},
		{"more shares than cents", 2, 3, []int64{0, 0, 2}},
		{"twelve", 100001, 12, []int64{8333, 8333, 8333, 8333, 8333, 8333, 8333, 8333, 8333, 8333, 8333, 8338}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shares, err := Money{Cents: tc.total}.Split(tc.n)
			require.NoError(t, err)
			require.Len(t, shares, tc.n)

			var sum int64
			for i, s := range shares {
				assert.Equal(t, tc.want[i], s.Cents, "share %d", i)
				sum += s.Cents
			}
			assert.Equal(t, tc.total, sum)
		})
	}

	_, err := Money{Cents: 100}.Split(0)
	assert.True(t, IsValidation(err))
}

func TestMoneyJSON(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{`300`, 30000, true},
		{`300.5`, 30050, true},
		{`"12.34"`, 1234, true},
		{`"12,34"`, 1234, true},
		{`0.01`, 1, true},
		{`1.005`, 0, false},
		{`"12,345"`, 0, false},
		{`"12.344"`, 0, false},
		{`"abc"`, 0, false},
		{`true`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			var m Money
			err := json.Unmarshal([]byte(tc.in), &m)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cents, m.Cents)
		})
	}

	out, err := json.Marshal(Money{Cents: 3334})
	require.NoError(t, err)
	assert.Equal(t, `33.34`, string(out))
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		m    Money
		code string
		want string
	}{
		{Money{Cents: 123456}, "USD", "$1,234.56"},
		{Money{Cents: 123456}, "BRL", "R$ 1.234,56"},
		{Money{Cents: 123456}, "EUR", "1.234,56 €"},
		{Money{Cents: 100}, "USD", "$1.00"},
		{Money{Cents: -2550}, "USD", "-$25.50"},
		{Money{Cents: 500}, "XXX", "R$ 5,00"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatAmount(tc.m, tc.code), "%d %s", tc.m.Cents, tc.code)
	}
}

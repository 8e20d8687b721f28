package http

import (
	"strings"

	"parcelas/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// formattedBalance carries display strings next to the raw amounts.
type formattedBalance struct {
	core.BalanceStats
	Currency         string `json:"currency"`
	IncomeFormatted  string `json:"incomeFormatted"`
	ExpenseFormatted string `json:"expenseFormatted"`
	BalanceFormatted string `json:"balanceFormatted"`
}

func formatBalance(b core.BalanceStats, currency string) formattedBalance {
	return formattedBalance{
		BalanceStats:     b,
		Currency:         currency,
		IncomeFormatted:  core.FormatAmount(b.Income, currency),
		ExpenseFormatted: core.FormatAmount(b.Expense, currency),
		BalanceFormatted: core.FormatAmount(b.Balance, currency),
	}
}

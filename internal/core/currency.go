package core

import (
	"strings"
)

// DefaultCurrency is assigned to owners that never saved settings.
const DefaultCurrency = "BRL"

// Currency describes how amounts are displayed for one currency code.
type Currency struct {
	Code     string `json:"value"`
	Label    string `json:"label"`
	Locale   string `json:"locale"`
	Symbol   string `json:"-"`
	Group    string `json:"-"`
	Point    string `json:"-"`
	Fraction int32  `json:"-"`
	Suffix   bool   `json:"-"`
}

var currencies = []Currency{
	{Code: "USD", Label: "$ Dollar", Locale: "en-US", Symbol: "$", Group: ",", Point: ".", Fraction: 2},
	{Code: "EUR", Label: "€ Euro", Locale: "de-DE", Symbol: "€", Group: ".", Point: ",", Fraction: 2, Suffix: true},
	{Code: "GBP", Label: "£ Pound", Locale: "en-GB", Symbol: "£", Group: ",", Point: ".", Fraction: 2},
	{Code: "JPY", Label: "¥ Yen", Locale: "ja-JP", Symbol: "¥", Group: ",", Point: ".", Fraction: 0},
	{Code: "BRL", Label: "R$ Real", Locale: "pt-BR", Symbol: "R$ ", Group: ".", Point: ",", Fraction: 2},
	{Code: "AUD", Label: "$ Australian Dollar", Locale: "en-AU", Symbol: "$", Group: ",", Point: ".", Fraction: 2},
	{Code: "CAD", Label: "$ Canadian Dollar", Locale: "en-CA", Symbol: "$", Group: ",", Point: ".", Fraction: 2},
	{Code: "CNY", Label: "¥ Yuan", Locale: "zh-CN", Symbol: "¥", Group: ",", Point: ".", Fraction: 2},
	{Code: "INR", Label: "₹ Rupee", Locale: "hi-IN", Symbol: "₹", Group: ",", Point: ".", Fraction: 2},
	{Code: "RUB", Label: "₽ Ruble", Locale: "ru-RU", Symbol: "₽", Group: " ", Point: ",", Fraction: 2, Suffix: true},
	{Code: "MXN", Label: "$ Mexican Peso", Locale: "es-MX", Symbol: "$", Group: ",", Point: ".", Fraction: 2},
	{Code: "ZAR", Label: "R Rand", Locale: "en-ZA", Symbol: "R", Group: " ", Point: ",", Fraction: 2},
	{Code: "CHF", Label: "CHF Swiss Franc", Locale: "de-CH", Symbol: "CHF ", Group: "’", Point: ".", Fraction: 2},
	{Code: "KRW", Label: "₩ Won", Locale: "ko-KR", Symbol: "₩", Group: ",", Point: ".", Fraction: 0},
	{Code: "ARS", Label: "$ Argentine Peso", Locale: "es-AR", Symbol: "$ ", Group: ".", Point: ",", Fraction: 2},
}

// Currencies returns a copy of the supported currency catalog.
func Currencies() []Currency {
	out := make([]Currency, len(currencies))
	copy(out, currencies)
	return out
}

func LookupCurrency(code string) (Currency, bool) {
	for _, c := range currencies {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// FormatAmount renders m for display in the given currency, falling back to
// the default currency for unknown codes.
func FormatAmount(m Money, code string) string {
	c, ok := LookupCurrency(code)
	if !ok {
		c, _ = LookupCurrency(DefaultCurrency)
	}
	neg := m.Cents < 0
	s := m.Decimal().Abs().StringFixed(c.Fraction)

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(c.Group)
		}
		b.WriteRune(r)
	}
	num := b.String()
	if frac != "" {
		num += c.Point + frac
	}
	if neg {
		num = "-" + num
	}
	if c.Suffix {
		return num + " " + c.Symbol
	}
	return c.Symbol + num
}

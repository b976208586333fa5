package model

import (
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
)

// Currency is an ISO 4217 code in the lower-case form the payment stack uses.
type Currency = stripe.Currency

const DefaultCurrency Currency = stripe.CurrencyBDT

var glyphs = map[Currency]string{
	stripe.CurrencyBDT: "৳",
	stripe.CurrencyUSD: "$",
	stripe.CurrencyEUR: "€",
	stripe.CurrencyGBP: "£",
	stripe.CurrencyINR: "₹",
	stripe.CurrencyJPY: "¥",
}

// ParseCurrency accepts codes in any case; unknown codes fall back to DefaultCurrency.
func ParseCurrency(code string) Currency {
	c := Currency(strings.ToLower(strings.TrimSpace(code)))
	if _, ok := glyphs[c]; ok {
		return c
	}
	return DefaultCurrency
}

func Glyph(c Currency) string {
	if g, ok := glyphs[c]; ok {
		return g
	}
	return strings.ToUpper(string(c)) + " "
}

// FormatFee renders the glyph followed by the plain number. No grouping or locale rules apply.
func FormatFee(amount float64, c Currency) string {
	return Glyph(c) + strconv.FormatFloat(amount, 'f', -1, 64)
}

package types

import (
	"strings"

	ierr "github.com/saasinvoice/billing/internal/errors"
)

// CURRENCY_CODES_SYMBOLS maps ISO-4217 codes to display symbols
var CURRENCY_CODES_SYMBOLS = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"AUD": "AU$",
	"CAD": "CA$",
	"CHF": "CHF",
	"SEK": "kr",
	"NZD": "NZ$",
	"SGD": "S$",
	"JPY": "¥",
	"INR": "₹",
	"BRL": "R$",
	"MXN": "MX$",
	"KRW": "₩",
}

// zeroDecimalCurrencies have no minor unit
var zeroDecimalCurrencies = map[string]struct{}{
	"JPY": {}, "KRW": {}, "VND": {}, "CLP": {}, "ISK": {}, "UGX": {},
}

// GetCurrencySymbol returns the symbol for a given currency code
// if the code is not found, it returns the code itself
func GetCurrencySymbol(code string) string {
	if symbol, ok := CURRENCY_CODES_SYMBOLS[strings.ToUpper(code)]; ok {
		return symbol
	}
	return code
}

// CurrencyExponent returns the number of minor unit digits for the currency
func CurrencyExponent(code string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(code)]; ok {
		return 0
	}
	return 2
}

// NormalizeCurrency upper-cases and validates an ISO-4217 code
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 || strings.IndexFunc(code, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
		return "", ierr.NewError("invalid currency").
			WithHint("Currency must be a three letter ISO-4217 code").
			WithReportableDetails(map[string]any{
				"currency": code,
			}).
			Mark(ierr.ErrValidation)
	}
	return code, nil
}

func IsMatchingCurrency(a, b string) bool {
	return strings.EqualFold(a, b)
}

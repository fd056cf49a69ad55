package core

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatNumber renders v with Brazilian separators (1.234,56).
func FormatNumber(v float64, decimals int) string {
	return ptBR.Sprintf("%.*f", decimals, v)
}

// FormatInt renders whole numbers with thousands separators (1.234).
func FormatInt(v float64) string {
	return ptBR.Sprintf("%d", int64(math.Round(v)))
}

// FormatPercent renders a variation; ok=false yields "-".
func FormatPercent(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	sign := ""
	if v > 0 {
		sign = "+"
	}
	return sign + FormatNumber(v, 1) + "%"
}

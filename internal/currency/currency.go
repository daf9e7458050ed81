// Package currency formats storefront prices for operator-facing output.
package currency

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Indonesian)

// Rupiah renders an IDR amount with the storefront's grouping, e.g.
// 1500000 -> "Rp 1.500.000".
func Rupiah(amount int64) string {
	return printer.Sprintf("Rp %d", amount)
}

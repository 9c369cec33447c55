package domain

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var frenchPrinter = message.NewPrinter(language.French)

// FormatDirhams renders an amount in dirhams using French digit grouping, as
// displayed across the storefront (e.g. "1 249 DH").
func FormatDirhams(amount int64) string {
	return frenchPrinter.Sprintf("%d DH", amount)
}

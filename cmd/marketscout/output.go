package main

import (
	"fmt"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// numbers groups thousands the way listings quote prices.
var numbers = message.NewPrinter(language.English)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func formatPrice(p float64) string {
	return numbers.Sprintf("Rs. %.0f", p)
}

func formatCount(n int) string {
	return numbers.Sprintf("%d", n)
}

// scoreColor shades an opportunity score: green for strong, yellow for middling.
func scoreColor(score float64) string {
	switch {
	case score >= 65:
		return colorGreen
	case score >= 45:
		return colorYellow
	default:
		return colorRed
	}
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

package format

import "fmt"

// FmtPercent formats a 0..1 rate as "87%".
func FmtPercent(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}

// FmtMoney formats a currency amount with a thousands-friendly precision:
// two decimals under 1000, none above.
func FmtMoney(amount float64) string {
	if amount >= 1000 {
		return fmt.Sprintf("%.0f", amount)
	}
	return fmt.Sprintf("%.2f", amount)
}

// FmtHours formats an hour count as "1.5h".
func FmtHours(h float64) string {
	return fmt.Sprintf("%.1fh", h)
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}

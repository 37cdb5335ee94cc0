package usage

import (
	"fmt"
	"time"
)

// FormatTokens renders a token count as 1.23K / 4.56M.
func FormatTokens(count int) string {
	switch {
	case count >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(count)/1_000_000)
	case count >= 1_000:
		return fmt.Sprintf("%.2fK", float64(count)/1_000)
	default:
		return fmt.Sprintf("%d", count)
	}
}

// FormatCost renders a USD amount with six decimals.
func FormatCost(usd float64) string {
	return fmt.Sprintf("$%.6f", usd)
}

// FormatDuration renders seconds, minutes or hours with one decimal.
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1fs", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1fm", seconds/60)
	default:
		return fmt.Sprintf("%.1fh", seconds/3600)
	}
}

package display

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	if exp >= len(suffixes) {
		exp = len(suffixes) - 1
		div = 1
		for i := 0; i <= exp; i++ {
			div *= unit
		}
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp])
}

// FormatSavings renders the space saved by compression, e.g.
// "2.4 MiB (61.3%)". Growth renders as a zero saving.
func FormatSavings(originalBytes, compressedBytes int64) string {
	if originalBytes <= 0 || compressedBytes >= originalBytes {
		return "0 B (0.0%)"
	}
	saved := originalBytes - compressedBytes
	pct := float64(saved) / float64(originalBytes) * 100
	return fmt.Sprintf("%s (%.1f%%)", FormatBytes(saved), pct)
}

// FormatDuration renders a duration in a compact human form: "850ms",
// "12.3s", "2m05s", "1h04m".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}

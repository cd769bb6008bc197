package dashboard

import (
	"fmt"
	"math"
	"time"

	"github.com/monorkin/home-network-monitor/appliance/api"
)

const (
	TIME_FORMAT = "Jan 2, 15:04"
)

func FormatTime(ts api.Timestamp) string {
	if ts.IsZero() {
		return "never"
	}
	return ts.Local().Format(TIME_FORMAT)
}

// FormatAgo describes how long before now ts was, in the largest whole unit.
func FormatAgo(now time.Time, ts api.Timestamp) string {
	if ts.IsZero() {
		return "never"
	}

	elapsed := now.Sub(ts.Time)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%d min ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(elapsed.Hours()/24))
	}
}

// OfflineHours converts seconds offline to hours rounded to the nearest whole hour.
func OfflineHours(seconds float64) int {
	return int(math.Round(seconds / 3600))
}

func OrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

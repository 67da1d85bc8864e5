package governance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeout parses a /propose command's "--timeout" suffix into a
// duration, enforcing spec's 1 <= N <= 168 hour bound. Accepts the hour
// forms ("2h", "2 hours", "2 hour") and the day forms ("2d", "2 days",
// "2 day"), matching the original duration_parse.rs's "2d"/"7 days"
// support. An empty input yields defaultTimeout.
func ParseTimeout(flag string, defaultTimeout time.Duration) (time.Duration, error) {
	if flag == "" {
		return defaultTimeout, nil
	}
	trimmed := strings.ToLower(strings.TrimSpace(flag))
	unit := time.Hour
	switch {
	case strings.HasSuffix(trimmed, "hours"):
		trimmed = strings.TrimSuffix(trimmed, "hours")
	case strings.HasSuffix(trimmed, "hour"):
		trimmed = strings.TrimSuffix(trimmed, "hour")
	case strings.HasSuffix(trimmed, "days"):
		trimmed = strings.TrimSuffix(trimmed, "days")
		unit = 24 * time.Hour
	case strings.HasSuffix(trimmed, "day"):
		trimmed = strings.TrimSuffix(trimmed, "day")
		unit = 24 * time.Hour
	case strings.HasSuffix(trimmed, "d"):
		trimmed = strings.TrimSuffix(trimmed, "d")
		unit = 24 * time.Hour
	case strings.HasSuffix(trimmed, "h"):
		trimmed = strings.TrimSuffix(trimmed, "h")
	}
	n, err := strconv.Atoi(strings.TrimSpace(trimmed))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeout, flag)
	}
	duration := time.Duration(n) * unit
	if duration < time.Hour || duration > 168*time.Hour {
		return 0, ErrInvalidTimeout
	}
	return duration, nil
}

// FormatDuration renders a remaining duration for user-facing rate-limit
// messages ("try again in <duration>").
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Second)
	return d.String()
}

package actions

import (
	"context"

	"workflow-engine/internal/common/errors"
)

// MinIntervalMinutes is the floor applied to every timer interval.
const MinIntervalMinutes = 1

// intervalKeys are checked in order; the first positive value wins.
var intervalKeys = []string{"interval_minutes", "minutes", "mins", "interval", "every"}

// ParseIntervalMinutes reads a timer interval in minutes from step
// parameters, accepting several aliases and numeric strings. Returns false
// when no parameter carries a positive number. Also used by the timer
// scheduler for per-tick interval reads.
func ParseIntervalMinutes(params map[string]interface{}) (int, bool) {
	for _, key := range intervalKeys {
		if minutes, ok := positiveNumber(params[key]); ok {
			n := int(minutes)
			if n < MinIntervalMinutes {
				n = MinIntervalMinutes
			}
			return n, true
		}
	}
	return 0, false
}

// timerInterval is pure local computation: it normalizes the configured
// interval and echoes it back for timer bookkeeping and direct testing.
func timerInterval(ctx context.Context, userID int64, params map[string]interface{}) (map[string]interface{}, error) {
	minutes, ok := ParseIntervalMinutes(params)
	if !ok {
		return nil, errors.CapabilityError("missing interval parameter, expected 'interval_minutes', 'minutes' or 'every' in minutes", nil)
	}

	return map[string]interface{}{
		"status":           "timer_configured",
		"interval_minutes": minutes,
		"interval_seconds": minutes * 60,
	}, nil
}

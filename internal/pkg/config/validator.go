package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard five-field format
// ("minute hour day month weekday"), matching what the worker's scheduler
// understands.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks a cron expression with the same parser the
// worker schedules with, so anything accepted here runs.
//
//	err := ValidateCronSchedule("30 5 * * *") // every day at 5:30
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("cron schedule is empty")
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("parse cron schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks an IANA timezone name ("UTC", "Asia/Tokyo") by
// loading it. This fails when the timezone database is unavailable, such as
// a container image missing the tzdata package.
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("timezone is empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return nil
}

// ValidateDuration checks that a duration falls within [min, max] inclusive.
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("bad range: min %v > max %v", min, max)
	}
	if duration < min || duration > max {
		return fmt.Errorf("duration %v outside allowed range [%v, %v]", duration, min, max)
	}
	return nil
}

// ValidateIntRange checks that an integer falls within [min, max] inclusive.
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("bad range: min %d > max %d", min, max)
	}
	if value < min || value > max {
		return fmt.Errorf("value %d outside allowed range [%d, %d]", value, min, max)
	}
	return nil
}

// ValidatePositiveDuration checks that a duration is strictly positive.
// Used for timeouts and retry delays where zero would mean no waiting at all.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}

// ValidateNonNegativeDuration checks that a duration is zero or positive.
// Used for optional pauses where zero disables the pause.
func ValidateNonNegativeDuration(duration time.Duration) error {
	if duration < 0 {
		return fmt.Errorf("duration must not be negative, got %v", duration)
	}
	return nil
}

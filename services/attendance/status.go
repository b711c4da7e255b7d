package attendance

import (
	"fmt"
	"time"

	"academy_go/models"
	"academy_go/utils"
)

// GraceMinutes is applied symmetrically to the scheduled start (lateness) and end (early leave).
const GraceMinutes = 10

// Clock is a wall-clock time of day in minutes after midnight.
type Clock int

// ParseClock reads an "HH:MM[:SS]" value, dropping seconds.
func ParseClock(value string) (Clock, error) {
	h, m, err := utils.ParseHourMinute(value)
	if err != nil {
		return 0, err
	}
	return Clock(h*60 + m), nil
}

// ClockOf returns the minute of day of t in loc.
func ClockOf(t time.Time, loc *time.Location) Clock {
	t = t.In(loc)
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is the scheduled start and end of a class on a given day.
type Window struct {
	Start Clock
	End   Clock
}

// DetermineStatus classifies a check-in/check-out pair against a scheduled window.
// Times are compared as minutes of day in loc.
func DetermineStatus(loc *time.Location, checkInAt, checkOutAt *time.Time, w Window) models.AttendanceStatus {
	if checkInAt == nil {
		return models.StatusPending
	}

	if ClockOf(*checkInAt, loc) > w.Start+GraceMinutes {
		return models.StatusLate
	}

	if checkOutAt != nil && ClockOf(*checkOutAt, loc) < w.End-GraceMinutes {
		return models.StatusEarlyLeave
	}

	return models.StatusPresent
}

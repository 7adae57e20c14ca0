package scheduling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Clock is a wall-clock time of day in whole minutes since midnight.
type Clock int

const minutesPerDay = 24 * 60

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock reads "HH:MM" or "HH:MM:SS". Seconds must be zero.
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Second() != 0 {
			return 0, fmt.Errorf("time %q must be on a whole minute", s)
		}
		return NewClock(t.Hour(), t.Minute()), nil
	}
	return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
}

func (c Clock) Valid() bool { return c >= 0 && c < minutesPerDay }

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalParam lets echo bind query and path parameters.
func (c *Clock) UnmarshalParam(s string) error {
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ScanTime implements pgtype.TimeScanner.
func (c *Clock) ScanTime(v pgtype.Time) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into Clock")
	}
	*c = Clock(v.Microseconds / int64(time.Minute/time.Microsecond))
	return nil
}

// TimeValue implements pgtype.TimeValuer.
func (c Clock) TimeValue() (pgtype.Time, error) {
	return pgtype.Time{Microseconds: int64(c) * int64(time.Minute/time.Microsecond), Valid: true}, nil
}

// Weekday names a day in the weekly availability pattern.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays in week order, Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayOf converts a time.Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return Weekdays[d-1]
}

func ParseWeekday(s string) (Weekday, error) {
	for _, w := range Weekdays {
		if string(w) == s {
			return w, nil
		}
	}
	return "", fmt.Errorf("invalid day_of_week %q", s)
}

package availability

import (
	"fmt"
	"slices"
	"time"
)

// BusinessHours is a daily [StartHour, EndHour) window on the given weekdays.
type BusinessHours struct {
	StartHour int
	EndHour   int
	WorkDays  []time.Weekday
}

// DefaultWorkDays is Monday through Friday.
var DefaultWorkDays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}

// DefaultBusinessHours returns 9:00-17:00, Monday to Friday.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{StartHour: 9, EndHour: 17, WorkDays: DefaultWorkDays}
}

// Validate checks that the hours describe a window inside a single day.
func (b BusinessHours) Validate() error {
	if b.StartHour < 0 || b.StartHour > 23 {
		return fmt.Errorf("business start hour must be between 0 and 23, got %d", b.StartHour)
	}
	if b.EndHour < 1 || b.EndHour > 24 {
		return fmt.Errorf("business end hour must be between 1 and 24, got %d", b.EndHour)
	}
	if b.StartHour >= b.EndHour {
		return fmt.Errorf("business start hour %d must be before end hour %d", b.StartHour, b.EndHour)
	}
	return nil
}

// Contains reports whether t, in its own location, falls inside the window.
// A nil WorkDays slice means DefaultWorkDays.
func (b BusinessHours) Contains(t time.Time) bool {
	days := b.WorkDays
	if days == nil {
		days = DefaultWorkDays
	}
	if !slices.Contains(days, t.Weekday()) {
		return false
	}
	return b.StartHour <= t.Hour() && t.Hour() < b.EndHour
}

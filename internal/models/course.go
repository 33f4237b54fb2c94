package models

import "time"

// Course is a training course whose lessons are tracked through the register.
// Window hours override the canonical schedule when set.
type Course struct {
	ID        string  `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Code      *string `db:"code" json:"code,omitempty"`
	DocPrefix string  `db:"doc_prefix" json:"doc_prefix"`
	Argomento *string `db:"argomento" json:"argomento,omitempty"`

	MorningStartHour   int `db:"morning_start_hour" json:"morning_start_hour"`
	MorningEndHour     int `db:"morning_end_hour" json:"morning_end_hour"`
	AfternoonStartHour int `db:"afternoon_start_hour" json:"afternoon_start_hour"`
	AfternoonEndHour   int `db:"afternoon_end_hour" json:"afternoon_end_hour"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Windows returns the course's lesson windows, falling back to the canonical
// defaults for any unset boundary.
func (c *Course) Windows() LessonWindows {
	w := DefaultLessonWindows()
	if c == nil {
		return w
	}
	if c.MorningStartHour > 0 {
		w.Morning.StartHour = c.MorningStartHour
	}
	if c.MorningEndHour > 0 {
		w.Morning.EndHour = c.MorningEndHour
	}
	if c.AfternoonStartHour > 0 {
		w.Afternoon.StartHour = c.AfternoonStartHour
	}
	if c.AfternoonEndHour > 0 {
		w.Afternoon.EndHour = c.AfternoonEndHour
	}
	return w
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Search   string
	Page     int
	PageSize int
}

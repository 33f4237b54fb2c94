package models

import (
	"strings"
	"time"
)

// Period identifies the half of a lesson day a connection belongs to.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodUnknown   Period = "unknown"
)

// Valid returns true when the period is a supported value.
func (p Period) Valid() bool {
	switch p {
	case PeriodMorning, PeriodAfternoon, PeriodUnknown:
		return true
	default:
		return false
	}
}

// LessonType selects which periods a lesson spans.
type LessonType string

const (
	LessonTypeMorning   LessonType = "morning"
	LessonTypeAfternoon LessonType = "afternoon"
	LessonTypeFull      LessonType = "full"
	LessonTypeAuto      LessonType = "auto"
)

// Valid returns true when the lesson type is a supported value.
func (t LessonType) Valid() bool {
	switch t {
	case LessonTypeMorning, LessonTypeAfternoon, LessonTypeFull, LessonTypeAuto:
		return true
	default:
		return false
	}
}

// ConnectionEvent is one contiguous join->leave interval for a participant.
// Invariant: Leave is never before Join; events violating it are discarded
// at consolidation time instead of failing the run.
type ConnectionEvent struct {
	Join  time.Time `json:"join"`
	Leave time.Time `json:"leave"`
}

// Duration returns the length of the connection.
func (e ConnectionEvent) Duration() time.Duration {
	return e.Leave.Sub(e.Join)
}

// RawConnectionRow is one physical connection exactly as exported, prior to
// aggregation. A participant may contribute many rows per period.
type RawConnectionRow struct {
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Join            time.Time `json:"join"`
	Leave           time.Time `json:"leave"`
	DurationMinutes int       `json:"duration_minutes"`
	IsGuest         bool      `json:"is_guest"`
	IsOrganizer     bool      `json:"is_organizer"`
}

// ParticipantAlias is an alternate identity the external alias merger has
// attributed to the same real participant. Connections is an opaque display
// string supplied by the merger.
type ParticipantAlias struct {
	Name        string `json:"name"`
	Connections string `json:"connections"`
}

// PeriodConnections holds the consolidated connection events per period,
// each list sorted ascending by join time.
type PeriodConnections struct {
	Morning   []ConnectionEvent `json:"morning"`
	Afternoon []ConnectionEvent `json:"afternoon"`
}

// ForPeriod returns the event list for the given period.
func (c PeriodConnections) ForPeriod(p Period) []ConnectionEvent {
	if p == PeriodAfternoon {
		return c.Afternoon
	}
	return c.Morning
}

// PeriodSessions holds the raw export rows per period.
type PeriodSessions struct {
	Morning   []RawConnectionRow `json:"morning"`
	Afternoon []RawConnectionRow `json:"afternoon"`
}

// ProcessedParticipant aggregates every connection for one identity
// (case-insensitive name match) within one lesson day. Instances are owned by
// the computation pass that creates them; nothing outside that pass mutates
// them concurrently.
type ProcessedParticipant struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	IsOrganizer bool   `json:"is_organizer"`

	Connections PeriodConnections `json:"connections"`
	Sessions    PeriodSessions    `json:"sessions"`

	MorningFirstJoin   *time.Time `json:"morning_first_join,omitempty"`
	MorningLastLeave   *time.Time `json:"morning_last_leave,omitempty"`
	AfternoonFirstJoin *time.Time `json:"afternoon_first_join,omitempty"`
	AfternoonLastLeave *time.Time `json:"afternoon_last_leave,omitempty"`

	TotalAbsenceMinutes int  `json:"total_absence_minutes"`
	IsPresent           bool `json:"is_present"`

	// IsAbsent is the explicit manual override coming from the UI; when set it
	// wins over any computed timestamps in the rendered register.
	IsAbsent *bool `json:"is_absent,omitempty"`

	Aliases []ParticipantAlias `json:"aliases,omitempty"`
}

// Key returns the case-insensitive identity key for the participant.
func (p *ProcessedParticipant) Key() string {
	return strings.ToLower(strings.TrimSpace(p.Name))
}

// HasConnections reports whether the participant has at least one consolidated
// connection in the given period.
func (p *ProcessedParticipant) HasConnections(period Period) bool {
	return len(p.Connections.ForPeriod(period)) > 0
}

// HasAnyConnections reports whether either period holds connections.
func (p *ProcessedParticipant) HasAnyConnections() bool {
	return len(p.Connections.Morning) > 0 || len(p.Connections.Afternoon) > 0
}

// MarkedAbsent reports whether the manual absence override is set.
func (p *ProcessedParticipant) MarkedAbsent() bool {
	return p.IsAbsent != nil && *p.IsAbsent
}

// MarkedPresent reports whether the participant was manually forced present.
func (p *ProcessedParticipant) MarkedPresent() bool {
	return p.IsAbsent != nil && !*p.IsAbsent
}

// LessonWindow is the scheduled boundary of one period, expressed as whole
// hours of the lesson day.
type LessonWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Default lesson windows used when the course does not override them.
const (
	DefaultMorningStartHour   = 9
	DefaultMorningEndHour     = 13
	DefaultAfternoonStartHour = 14
	DefaultAfternoonEndHour   = 18
)

// LessonWindows pairs the scheduled windows for both periods.
type LessonWindows struct {
	Morning   LessonWindow `json:"morning"`
	Afternoon LessonWindow `json:"afternoon"`
}

// DefaultLessonWindows returns the canonical 9-13 / 14-18 schedule.
func DefaultLessonWindows() LessonWindows {
	return LessonWindows{
		Morning:   LessonWindow{StartHour: DefaultMorningStartHour, EndHour: DefaultMorningEndHour},
		Afternoon: LessonWindow{StartHour: DefaultAfternoonStartHour, EndHour: DefaultAfternoonEndHour},
	}
}

// ForPeriod returns the window for the given period.
func (w LessonWindows) ForPeriod(p Period) LessonWindow {
	if p == PeriodAfternoon {
		return w.Afternoon
	}
	return w.Morning
}

// CSVAnalysis is the transient classification result for one export file.
// It is never persisted.
type CSVAnalysis struct {
	Period           Period     `json:"period"`
	FirstJoin        *time.Time `json:"first_join,omitempty"`
	LastLeave        *time.Time `json:"last_leave,omitempty"`
	ParticipantCount int        `json:"participant_count"`
}

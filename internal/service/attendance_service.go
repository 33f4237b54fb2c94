package service

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/registrocorsi/register-api/internal/models"
)

const (
	// defaultReconnectTolerance is the internal gap below which a
	// reconnection counts as network noise, not absence.
	defaultReconnectTolerance = 90 * time.Second

	// defaultPresenceToleranceMinutes is the maximum cumulative absence that
	// still counts as present. Policy constant, not per-lesson.
	defaultPresenceToleranceMinutes = 14

	// AbsentSentinelMinutes marks a participant with zero connections in both
	// periods. It sits outside the 0-480 range a real computation can reach,
	// and the rendered document depends on the exact value.
	AbsentSentinelMinutes = 999
)

// AttendanceCalculator computes absence minutes and the presence flag for
// consolidated participants against the scheduled lesson windows.
type AttendanceCalculator struct {
	windows           models.LessonWindows
	reconnectTol      time.Duration
	presenceTolerance int
	logger            *zap.Logger
}

// NewAttendanceCalculator constructs a calculator. Zero-valued tunables fall
// back to the policy defaults.
func NewAttendanceCalculator(windows models.LessonWindows, reconnectTol time.Duration, presenceTolerance int, logger *zap.Logger) *AttendanceCalculator {
	if windows.Morning.EndHour <= windows.Morning.StartHour {
		windows.Morning = models.DefaultLessonWindows().Morning
	}
	if windows.Afternoon.EndHour <= windows.Afternoon.StartHour {
		windows.Afternoon = models.DefaultLessonWindows().Afternoon
	}
	if reconnectTol <= 0 {
		reconnectTol = defaultReconnectTolerance
	}
	if presenceTolerance <= 0 {
		presenceTolerance = defaultPresenceToleranceMinutes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceCalculator{
		windows:           windows,
		reconnectTol:      reconnectTol,
		presenceTolerance: presenceTolerance,
		logger:            logger,
	}
}

// Windows exposes the scheduled windows the calculator measures against.
func (c *AttendanceCalculator) Windows() models.LessonWindows {
	return c.windows
}

// Annotate recomputes first join, last leave, total absence and presence for
// one participant. TotalAbsenceMinutes is always recomputed from the
// connection lists, never adjusted incrementally.
func (c *AttendanceCalculator) Annotate(p *models.ProcessedParticipant) {
	p.MorningFirstJoin, p.MorningLastLeave = nil, nil
	p.AfternoonFirstJoin, p.AfternoonLastLeave = nil, nil

	morningHasData := len(p.Connections.Morning) > 0
	afternoonHasData := len(p.Connections.Afternoon) > 0

	if !morningHasData && !afternoonHasData {
		p.TotalAbsenceMinutes = AbsentSentinelMinutes
		p.IsPresent = false
		return
	}

	total := 0.0
	if morningHasData {
		minutes, first, last := c.periodAbsence(p.Connections.Morning, c.windows.Morning)
		p.MorningFirstJoin, p.MorningLastLeave = first, last
		total += minutes
	}
	if afternoonHasData {
		minutes, first, last := c.periodAbsence(p.Connections.Afternoon, c.windows.Afternoon)
		p.AfternoonFirstJoin, p.AfternoonLastLeave = first, last
		total += minutes
	}

	// A period without connections contributes nothing when the other has
	// data: single-period enrollment is legitimate.
	p.TotalAbsenceMinutes = int(math.Round(total))
	if p.TotalAbsenceMinutes < 0 {
		p.TotalAbsenceMinutes = 0
	}
	p.IsPresent = p.TotalAbsenceMinutes <= c.presenceTolerance
}

// AnnotateAll recomputes every participant independently; a malformed record
// for one participant can never corrupt another's.
func (c *AttendanceCalculator) AnnotateAll(participants []*models.ProcessedParticipant) {
	for _, p := range participants {
		c.Annotate(p)
	}
}

func (c *AttendanceCalculator) periodAbsence(events []models.ConnectionEvent, window models.LessonWindow) (minutes float64, first, last *time.Time) {
	sorted := make([]models.ConnectionEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Join.Before(sorted[j].Join) })

	firstJoin := sorted[0].Join
	lastLeave := sorted[0].Leave
	for _, e := range sorted[1:] {
		if e.Leave.After(lastLeave) {
			lastLeave = e.Leave
		}
	}

	day := firstJoin
	scheduledStart := time.Date(day.Year(), day.Month(), day.Day(), window.StartHour, 0, 0, 0, day.Location())
	scheduledEnd := time.Date(day.Year(), day.Month(), day.Day(), window.EndHour, 0, 0, 0, day.Location())

	absence := 0.0
	if lead := firstJoin.Sub(scheduledStart); lead > 0 {
		absence += lead.Minutes()
	}
	if trail := scheduledEnd.Sub(lastLeave); trail > 0 {
		absence += trail.Minutes()
	}

	// Internal gaps: track the furthest leave seen so far so overlapping
	// connections (multiple devices) never produce phantom gaps.
	covered := sorted[0].Leave
	for _, e := range sorted[1:] {
		if gap := e.Join.Sub(covered); gap > c.reconnectTol {
			absence += gap.Minutes()
		}
		if e.Leave.After(covered) {
			covered = e.Leave
		}
	}

	return absence, &firstJoin, &lastLeave
}

package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/registrocorsi/register-api/internal/models"
)

// InferLessonHours derives the distinct integer hours actually covered by any
// connection interval of the whole population (organizer included). Hours are
// clipped to the scheduled windows for the requested lesson type; auto-detect
// skips clipping and reports the raw observed hours. The result is ascending
// and deduplicated, empty when nothing qualifies.
func InferLessonHours(population []*models.ProcessedParticipant, lessonType models.LessonType, windows models.LessonWindows) []int {
	seen := make(map[int]struct{})
	for _, p := range population {
		if p == nil {
			continue
		}
		collectHours(seen, p.Connections.Morning)
		collectHours(seen, p.Connections.Afternoon)
	}

	hours := make([]int, 0, len(seen))
	for h := range seen {
		if !hourAllowed(h, lessonType, windows) {
			continue
		}
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}

// BuildScheduleText renders the taught hours as the human-readable schedule
// string, e.g. "09:00 - 13:00 / 14:00 - 18:00". Each block's end hour comes
// from rounding the latest observed leave inside the block to the nearest
// hour, so the displayed end time reflects what actually happened.
func BuildScheduleText(population []*models.ProcessedParticipant, lessonType models.LessonType, windows models.LessonWindows) string {
	hours := InferLessonHours(population, lessonType, windows)
	if len(hours) == 0 {
		return ""
	}

	blocks := contiguousBlocks(hours)
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		start := block[0]
		end := block[len(block)-1] + 1
		if leave, ok := latestLeaveWithin(population, block); ok {
			if rounded := roundToHour(leave); rounded > start {
				end = rounded
			}
		}
		parts = append(parts, fmt.Sprintf("%02d:00 - %02d:00", start, end))
	}
	return strings.Join(parts, " / ")
}

func collectHours(seen map[int]struct{}, events []models.ConnectionEvent) {
	for _, e := range events {
		if e.Leave.Before(e.Join) {
			continue
		}
		last := e.Leave.Hour()
		if e.Leave.Minute() == 0 && e.Leave.Second() == 0 {
			last--
		}
		for h := e.Join.Hour(); h <= last; h++ {
			seen[h] = struct{}{}
		}
	}
}

func hourAllowed(h int, lessonType models.LessonType, windows models.LessonWindows) bool {
	inMorning := h >= windows.Morning.StartHour && h < windows.Morning.EndHour
	inAfternoon := h >= windows.Afternoon.StartHour && h < windows.Afternoon.EndHour

	switch lessonType {
	case models.LessonTypeMorning:
		return inMorning
	case models.LessonTypeAfternoon:
		return inAfternoon
	case models.LessonTypeFull:
		return inMorning || inAfternoon
	default:
		// Auto-detect keeps the raw observed hours.
		return true
	}
}

func contiguousBlocks(hours []int) [][]int {
	var blocks [][]int
	var current []int
	for _, h := range hours {
		if len(current) > 0 && h != current[len(current)-1]+1 {
			blocks = append(blocks, current)
			current = nil
		}
		current = append(current, h)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// latestLeaveWithin returns the latest leave instant among connections that
// touch any hour of the block.
func latestLeaveWithin(population []*models.ProcessedParticipant, block []int) (time.Time, bool) {
	blockSet := make(map[int]struct{}, len(block))
	for _, h := range block {
		blockSet[h] = struct{}{}
	}

	var latest time.Time
	found := false
	consider := func(events []models.ConnectionEvent) {
		for _, e := range events {
			if e.Leave.Before(e.Join) {
				continue
			}
			last := e.Leave.Hour()
			if e.Leave.Minute() == 0 && e.Leave.Second() == 0 {
				last--
			}
			touches := false
			for h := e.Join.Hour(); h <= last; h++ {
				if _, ok := blockSet[h]; ok {
					touches = true
					break
				}
			}
			if touches && (!found || e.Leave.After(latest)) {
				latest = e.Leave
				found = true
			}
		}
	}

	for _, p := range population {
		if p == nil {
			continue
		}
		consider(p.Connections.Morning)
		consider(p.Connections.Afternoon)
	}
	return latest, found
}

// roundToHour rounds to the nearest whole hour; 30 minutes or more rounds up.
func roundToHour(t time.Time) int {
	h := t.Hour()
	if t.Minute() >= 30 {
		h++
	}
	return h
}

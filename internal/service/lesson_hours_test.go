package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/registrocorsi/register-api/internal/models"
)

func participantWith(morning, afternoon []models.ConnectionEvent) *models.ProcessedParticipant {
	p := &models.ProcessedParticipant{Name: "Mario Rossi"}
	p.Connections.Morning = morning
	p.Connections.Afternoon = afternoon
	return p
}

func TestInferLessonHoursFullDay(t *testing.T) {
	p := participantWith(
		[]models.ConnectionEvent{event(9, 0, 0, 13, 0, 0)},
		[]models.ConnectionEvent{event(14, 0, 0, 18, 0, 0)},
	)

	hours := InferLessonHours([]*models.ProcessedParticipant{p}, models.LessonTypeAuto, models.DefaultLessonWindows())
	assert.Equal(t, []int{9, 10, 11, 12, 14, 15, 16, 17}, hours)
}

func TestInferLessonHoursLeaveOnTheHourExcludesNextHour(t *testing.T) {
	p := participantWith([]models.ConnectionEvent{event(9, 0, 0, 11, 0, 0)}, nil)

	hours := InferLessonHours([]*models.ProcessedParticipant{p}, models.LessonTypeAuto, models.DefaultLessonWindows())
	assert.Equal(t, []int{9, 10}, hours)
}

func TestInferLessonHoursLeavePastTheHourIncludesIt(t *testing.T) {
	p := participantWith([]models.ConnectionEvent{event(9, 0, 0, 11, 0, 1)}, nil)

	hours := InferLessonHours([]*models.ProcessedParticipant{p}, models.LessonTypeAuto, models.DefaultLessonWindows())
	assert.Equal(t, []int{9, 10, 11}, hours)
}

func TestInferLessonHoursClipping(t *testing.T) {
	p := participantWith(
		[]models.ConnectionEvent{event(8, 0, 0, 13, 30, 0)},
		[]models.ConnectionEvent{event(14, 0, 0, 18, 45, 0)},
	)
	windows := models.DefaultLessonWindows()
	population := []*models.ProcessedParticipant{p}

	assert.Equal(t, []int{9, 10, 11, 12}, InferLessonHours(population, models.LessonTypeMorning, windows))
	assert.Equal(t, []int{14, 15, 16, 17}, InferLessonHours(population, models.LessonTypeAfternoon, windows))
	assert.Equal(t, []int{9, 10, 11, 12, 14, 15, 16, 17}, InferLessonHours(population, models.LessonTypeFull, windows))
	assert.Equal(t, []int{8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18}, InferLessonHours(population, models.LessonTypeAuto, windows))
}

func TestInferLessonHoursDeduplicatesAcrossPopulation(t *testing.T) {
	a := participantWith([]models.ConnectionEvent{event(9, 0, 0, 11, 0, 0)}, nil)
	b := participantWith([]models.ConnectionEvent{event(10, 0, 0, 12, 30, 0)}, nil)

	hours := InferLessonHours([]*models.ProcessedParticipant{a, b}, models.LessonTypeAuto, models.DefaultLessonWindows())
	assert.Equal(t, []int{9, 10, 11, 12}, hours)
}

func TestInferLessonHoursEmptyPopulation(t *testing.T) {
	assert.Empty(t, InferLessonHours(nil, models.LessonTypeAuto, models.DefaultLessonWindows()))
	assert.Empty(t, InferLessonHours([]*models.ProcessedParticipant{nil}, models.LessonTypeAuto, models.DefaultLessonWindows()))
}

func TestBuildScheduleTextFullDay(t *testing.T) {
	p := participantWith(
		[]models.ConnectionEvent{event(9, 0, 0, 13, 0, 0)},
		[]models.ConnectionEvent{event(14, 0, 0, 18, 0, 0)},
	)

	text := BuildScheduleText([]*models.ProcessedParticipant{p}, models.LessonTypeAuto, models.DefaultLessonWindows())
	assert.Equal(t, "09:00 - 13:00 / 14:00 - 18:00", text)
}

func TestBuildScheduleTextEndRounding(t *testing.T) {
	tests := []struct {
		name  string
		leave time.Time
		want  string
	}{
		{
			name:  "twenty nine minutes rounds down",
			leave: time.Date(2025, time.July, 8, 12, 29, 0, 0, time.Local),
			want:  "09:00 - 12:00",
		},
		{
			name:  "thirty minutes rounds up",
			leave: time.Date(2025, time.July, 8, 12, 30, 0, 0, time.Local),
			want:  "09:00 - 13:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := participantWith([]models.ConnectionEvent{{
				Join:  time.Date(2025, time.July, 8, 9, 0, 0, 0, time.Local),
				Leave: tt.leave,
			}}, nil)
			text := BuildScheduleText([]*models.ProcessedParticipant{p}, models.LessonTypeAuto, models.DefaultLessonWindows())
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestBuildScheduleTextEmpty(t *testing.T) {
	assert.Equal(t, "", BuildScheduleText(nil, models.LessonTypeAuto, models.DefaultLessonWindows()))
}

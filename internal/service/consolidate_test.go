package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrocorsi/register-api/internal/models"
)

func lessonDay(hour, min int) time.Time {
	return time.Date(2025, time.July, 8, hour, min, 0, 0, time.Local)
}

func row(name string, joinHour, joinMin, leaveHour, leaveMin int) models.RawConnectionRow {
	return models.RawConnectionRow{
		Name:  name,
		Join:  lessonDay(joinHour, joinMin),
		Leave: lessonDay(leaveHour, leaveMin),
	}
}

func TestConsolidateGroupsByCaseInsensitiveName(t *testing.T) {
	morning := []models.RawConnectionRow{
		row("Mario Rossi", 9, 0, 10, 30),
		row("MARIO ROSSI", 10, 35, 13, 0),
		row("Anna Bianchi", 9, 5, 13, 0),
	}

	result := ConsolidateSessions(morning, nil)
	require.Len(t, result.Participants, 2)
	assert.Nil(t, result.Organizer)

	assert.Equal(t, "Anna Bianchi", result.Participants[0].Name)
	assert.Equal(t, "Mario Rossi", result.Participants[1].Name)
	assert.Len(t, result.Participants[1].Connections.Morning, 2)
	assert.Len(t, result.Participants[1].Sessions.Morning, 2)
}

func TestConsolidateOrganizerExcluded(t *testing.T) {
	organizer := row("Anna Bianchi", 8, 55, 13, 0)
	organizer.IsOrganizer = true
	morning := []models.RawConnectionRow{organizer, row("Mario Rossi", 9, 0, 13, 0)}
	afternoon := []models.RawConnectionRow{row("Anna Bianchi", 14, 0, 18, 0), row("Mario Rossi", 14, 0, 18, 0)}

	result := ConsolidateSessions(morning, afternoon)
	require.NotNil(t, result.Organizer)
	assert.Equal(t, "Anna Bianchi", result.Organizer.Name)
	assert.True(t, result.Organizer.IsOrganizer)
	// Afternoon rows for the organizer fold into the same identity.
	assert.Len(t, result.Organizer.Connections.Afternoon, 1)

	require.Len(t, result.Participants, 1)
	assert.Equal(t, "Mario Rossi", result.Participants[0].Name)
}

func TestConsolidateDiscardsInvertedEventsKeepsSessions(t *testing.T) {
	inverted := models.RawConnectionRow{
		Name:  "Mario Rossi",
		Join:  lessonDay(11, 0),
		Leave: lessonDay(9, 0),
	}
	morning := []models.RawConnectionRow{inverted, row("Mario Rossi", 9, 0, 10, 0)}

	result := ConsolidateSessions(morning, nil)
	require.Len(t, result.Participants, 1)
	p := result.Participants[0]
	assert.Len(t, p.Connections.Morning, 1, "inverted interval never becomes a connection")
	assert.Len(t, p.Sessions.Morning, 2, "the raw row stays on record")
}

func TestConsolidateSortsConnectionsByJoin(t *testing.T) {
	morning := []models.RawConnectionRow{
		row("Mario Rossi", 11, 0, 13, 0),
		row("Mario Rossi", 9, 0, 10, 0),
	}

	result := ConsolidateSessions(morning, nil)
	require.Len(t, result.Participants, 1)
	conns := result.Participants[0].Connections.Morning
	require.Len(t, conns, 2)
	assert.True(t, conns[0].Join.Before(conns[1].Join))
}

func TestConsolidateEmptyInput(t *testing.T) {
	result := ConsolidateSessions(nil, nil)
	assert.Empty(t, result.Participants)
	assert.Nil(t, result.Organizer)
}

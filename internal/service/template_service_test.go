package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrocorsi/register-api/internal/models"
)

func newTestBuilder() *TemplateBuilder {
	return NewTemplateBuilder(0, nil, nil)
}

func presentParticipant(name string) *models.ProcessedParticipant {
	p := &models.ProcessedParticipant{Name: name, IsPresent: true}
	p.Connections.Morning = []models.ConnectionEvent{event(9, 0, 0, 13, 0, 0)}
	p.Connections.Afternoon = []models.ConnectionEvent{event(14, 0, 0, 18, 0, 0)}
	return p
}

func TestBuildDateAndScheduleFields(t *testing.T) {
	builder := newTestBuilder()
	date := time.Date(2025, time.July, 8, 0, 0, 0, 0, time.Local)

	fields, warnings := builder.Build(date, "09:00 - 13:00", "Sicurezza sul lavoro", nil)

	assert.Empty(t, warnings)
	assert.Equal(t, "08", fields.Day)
	assert.Equal(t, "07", fields.Month)
	assert.Equal(t, "2025", fields.Year)
	assert.Equal(t, "09:00 - 13:00", fields.OrarioLezione)
	assert.Equal(t, "Sicurezza sul lavoro", fields.Argomento)
	require.Len(t, fields.Slots, models.RegisterSlotCount)
	for _, slot := range fields.Slots {
		assert.Equal(t, models.RegisterSlot{}, slot, "unused slots stay empty, never omitted")
	}
}

func TestBuildPresentParticipantSlot(t *testing.T) {
	builder := newTestBuilder()
	p := presentParticipant("Mario Rossi")

	fields, _ := builder.Build(time.Now(), "", "", []*models.ProcessedParticipant{p})

	slot := fields.Slots[0]
	assert.Equal(t, "Mario Rossi", slot.Nome)
	assert.Equal(t, "09:00:00", slot.MattOraIn)
	assert.Equal(t, "13:00:00", slot.MattOraOut)
	assert.Equal(t, "14:00:00", slot.PomeOraIn)
	assert.Equal(t, "18:00:00", slot.PomeOraOut)
	assert.Equal(t, "✓ 09:00:00 - 13:00:00; 14:00:00 - 18:00:00", slot.Presenza)
}

func TestBuildReconnectionsAllExposed(t *testing.T) {
	builder := newTestBuilder()
	p := &models.ProcessedParticipant{Name: "Mario Rossi", IsPresent: true}
	p.Connections.Morning = []models.ConnectionEvent{
		event(9, 0, 0, 10, 30, 0),
		event(10, 32, 0, 13, 0, 0),
	}

	fields, _ := builder.Build(time.Now(), "", "", []*models.ProcessedParticipant{p})

	slot := fields.Slots[0]
	assert.Equal(t, "09:00:00 - 10:32:00", slot.MattOraIn)
	assert.Equal(t, "10:30:00 - 13:00:00", slot.MattOraOut)
	assert.Equal(t, "✓ 09:00:00 - 10:30:00; 10:32:00 - 13:00:00", slot.Presenza)
}

func TestBuildAbsentParticipant(t *testing.T) {
	builder := newTestBuilder()
	p := &models.ProcessedParticipant{Name: "Luca Verdi", TotalAbsenceMinutes: AbsentSentinelMinutes}

	fields, _ := builder.Build(time.Now(), "", "", []*models.ProcessedParticipant{p})

	slot := fields.Slots[0]
	assert.Equal(t, "Luca Verdi", slot.Nome)
	assert.Equal(t, "ASSENTE", slot.MattOraIn)
	assert.Equal(t, "ASSENTE", slot.MattOraOut)
	assert.Equal(t, "ASSENTE", slot.PomeOraIn)
	assert.Equal(t, "ASSENTE", slot.PomeOraOut)
	assert.Equal(t, "✗ ASSENTE", slot.Presenza)
}

func TestBuildManualAbsentOverrideWinsOverConnections(t *testing.T) {
	builder := newTestBuilder()
	p := presentParticipant("Mario Rossi")
	absent := true
	p.IsAbsent = &absent

	fields, _ := builder.Build(time.Now(), "", "", []*models.ProcessedParticipant{p})

	slot := fields.Slots[0]
	assert.Equal(t, "ASSENTE", slot.MattOraIn)
	assert.Equal(t, "✗ ASSENTE", slot.Presenza)
}

func TestBuildManualPresentOverrideWithoutConnections(t *testing.T) {
	builder := newTestBuilder()
	p := &models.ProcessedParticipant{Name: "Mario Rossi", IsPresent: true}
	present := false
	p.IsAbsent = &present

	fields, _ := builder.Build(time.Now(), "", "", []*models.ProcessedParticipant{p})

	slot := fields.Slots[0]
	assert.Equal(t, "", slot.MattOraIn, "no connections leave the time fields empty")
	assert.Equal(t, "✓ ASSENTE", slot.Presenza, "marked present without intervals keeps the diagnostic literal")
}

func TestBuildTruncatesBeyondCapacity(t *testing.T) {
	builder := newTestBuilder()
	participants := make([]*models.ProcessedParticipant, 0, 7)
	for i := 0; i < 7; i++ {
		participants = append(participants, presentParticipant(fmt.Sprintf("Partecipante %d", i+1)))
	}

	fields, warnings := builder.Build(time.Now(), "", "", participants)

	require.Len(t, fields.Slots, models.RegisterSlotCount)
	assert.Equal(t, "Partecipante 5", fields.Slots[4].Nome)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "2 participants beyond")
}

func TestBuildAliasConnectionsInPresenceField(t *testing.T) {
	builder := newTestBuilder()
	p := presentParticipant("Mario Rossi")
	p.Aliases = []models.ParticipantAlias{{Name: "M. Rossi", Connections: "09:05:00 - 09:40:00"}}

	fields, _ := builder.Build(time.Now(), "", "", []*models.ProcessedParticipant{p})

	assert.Contains(t, fields.Slots[0].Presenza, "[M. Rossi] 09:05:00 - 09:40:00")
}

func TestFieldMapFlattensSlots(t *testing.T) {
	builder := newTestBuilder()
	p := presentParticipant("Mario Rossi")
	date := time.Date(2025, time.July, 8, 0, 0, 0, 0, time.Local)

	fields, _ := builder.Build(date, "09:00 - 13:00", "", []*models.ProcessedParticipant{p})
	m := fields.Map()

	assert.Equal(t, "Mario Rossi", m["nome1"])
	assert.Equal(t, "09:00:00", m["MattOraIn1"])
	assert.Equal(t, "", m["nome2"], "empty slots still emit every key")
	assert.Equal(t, "08", m["day"])
	assert.Equal(t, "09:00 - 13:00", m["orariolezione"])
}

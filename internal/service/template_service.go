package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/registrocorsi/register-api/internal/models"
)

const (
	// absentFieldValue is the literal the document template expects in every
	// time field of an absent participant.
	absentFieldValue = "ASSENTE"

	presentGlyph = "✓"
	absentGlyph  = "✗"

	// Separator between instants inside the raw time fields, and between
	// whole connections inside the diagnostic presence field.
	timeFieldSeparator = " - "
	presenceSeparator  = "; "

	connectionTimeLayout = "15:04:05"
)

// TemplateBuilder maps processed participants onto the flat field set of the
// register document. The document has a hard slot capacity; extra
// participants are dropped with a warning, never an error.
type TemplateBuilder struct {
	maxSlots int
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewTemplateBuilder constructs a builder. maxSlots <= 0 falls back to the
// document's capacity.
func NewTemplateBuilder(maxSlots int, metrics *MetricsService, logger *zap.Logger) *TemplateBuilder {
	if maxSlots <= 0 {
		maxSlots = models.RegisterSlotCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateBuilder{maxSlots: maxSlots, metrics: metrics, logger: logger}
}

// Build produces the template-ready record for one lesson day. Fewer
// participants than slots pad with empty fields; every value is a string and
// never omitted.
func (b *TemplateBuilder) Build(date time.Time, scheduleText, argomento string, participants []*models.ProcessedParticipant) (models.RegisterFields, []string) {
	var warnings []string

	if len(participants) > b.maxSlots {
		dropped := len(participants) - b.maxSlots
		warnings = append(warnings, fmt.Sprintf("%d participants beyond the %d document slots were dropped", dropped, b.maxSlots))
		b.logger.Warn("participant slots exceeded",
			zap.Int("participants", len(participants)),
			zap.Int("slots", b.maxSlots))
		b.metrics.RecordTruncatedParticipants(dropped)
		participants = participants[:b.maxSlots]
	}

	fields := models.RegisterFields{
		Day:           date.Format("02"),
		Month:         date.Format("01"),
		Year:          date.Format("2006"),
		OrarioLezione: scheduleText,
		Argomento:     argomento,
		Slots:         make([]models.RegisterSlot, b.maxSlots),
	}

	for i, p := range participants {
		fields.Slots[i] = b.buildSlot(p)
	}

	return fields, warnings
}

func (b *TemplateBuilder) buildSlot(p *models.ProcessedParticipant) models.RegisterSlot {
	slot := models.RegisterSlot{Nome: p.Name}

	// The manual override and the fully-disconnected case both force the
	// ASSENTE literal, independent of any stray computed timestamps.
	if p.MarkedAbsent() || (!p.HasAnyConnections() && !p.MarkedPresent()) {
		slot.MattOraIn = absentFieldValue
		slot.MattOraOut = absentFieldValue
		slot.PomeOraIn = absentFieldValue
		slot.PomeOraOut = absentFieldValue
		slot.Presenza = absentGlyph + " " + absentFieldValue
		return slot
	}

	// Every reconnection is exposed to the reviewer, not just first/last.
	slot.MattOraIn = joinInstants(p.Connections.Morning, func(e models.ConnectionEvent) time.Time { return e.Join })
	slot.MattOraOut = joinInstants(p.Connections.Morning, func(e models.ConnectionEvent) time.Time { return e.Leave })
	slot.PomeOraIn = joinInstants(p.Connections.Afternoon, func(e models.ConnectionEvent) time.Time { return e.Join })
	slot.PomeOraOut = joinInstants(p.Connections.Afternoon, func(e models.ConnectionEvent) time.Time { return e.Leave })
	slot.Presenza = b.presenceField(p)

	return slot
}

func (b *TemplateBuilder) presenceField(p *models.ProcessedParticipant) string {
	glyph := absentGlyph
	if p.IsPresent && !p.MarkedAbsent() {
		glyph = presentGlyph
	}

	entries := make([]string, 0, len(p.Connections.Morning)+len(p.Connections.Afternoon)+len(p.Aliases))
	for _, e := range p.Connections.Morning {
		entries = append(entries, formatConnection(e))
	}
	for _, e := range p.Connections.Afternoon {
		entries = append(entries, formatConnection(e))
	}
	for _, alias := range p.Aliases {
		entries = append(entries, fmt.Sprintf("[%s] %s", alias.Name, alias.Connections))
	}

	if len(entries) == 0 {
		return glyph + " " + absentFieldValue
	}
	return glyph + " " + strings.Join(entries, presenceSeparator)
}

func formatConnection(e models.ConnectionEvent) string {
	return e.Join.Format(connectionTimeLayout) + timeFieldSeparator + e.Leave.Format(connectionTimeLayout)
}

func joinInstants(events []models.ConnectionEvent, pick func(models.ConnectionEvent) time.Time) string {
	if len(events) == 0 {
		return ""
	}
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = pick(e).Format(connectionTimeLayout)
	}
	return strings.Join(parts, timeFieldSeparator)
}

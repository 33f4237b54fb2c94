package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/registrocorsi/register-api/internal/models"
	appErrors "github.com/registrocorsi/register-api/pkg/errors"
)

// afternoonBoundaryHour splits a lesson day: joins before it classify the
// file as a morning export.
const afternoonBoundaryHour = 13

// defaultParticipantTableMarker is the literal header cell that opens the
// participant table in the exports this deployment receives.
const defaultParticipantTableMarker = "Nome completo"

// roleSuffixPattern matches the trailing parenthetical the export appends to
// a participant name to mark roles, e.g. "Mario Rossi (Ospite)".
var roleSuffixPattern = regexp.MustCompile(`\s*\(([^)]*)\)\s*$`)

// IngestConfig tunes export file parsing.
type IngestConfig struct {
	// Marker is the literal participant-table marker; everything before the
	// row containing it is metadata preamble and discarded.
	Marker string

	// Now supplies the fallback instant for unparseable timestamps.
	// Defaults to time.Now.
	Now func() time.Time
}

// IngestService locates and parses the participant table inside a raw meeting
// export. It performs no I/O; input is the full decoded file text.
type IngestService struct {
	marker  string
	now     func() time.Time
	metrics *MetricsService
	logger  *zap.Logger
}

// NewIngestService constructs the ingest service.
func NewIngestService(cfg IngestConfig, metrics *MetricsService, logger *zap.Logger) *IngestService {
	if cfg.Marker == "" {
		cfg.Marker = defaultParticipantTableMarker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{marker: cfg.Marker, now: cfg.Now, metrics: metrics, logger: logger}
}

// Parse extracts the raw connection rows from the export text. The first
// kept data row is flagged as the organizer regardless of content; this
// positional rule comes with the export format and must not change.
func (s *IngestService) Parse(content string) ([]models.RawConnectionRow, error) {
	table, ok := s.locateTable(content)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidFormat, fmt.Sprintf("marker %q not found in export", s.marker))
	}

	headerLine := table
	if idx := strings.IndexAny(table, "\r\n"); idx >= 0 {
		headerLine = table[:idx]
	}

	reader := csv.NewReader(strings.NewReader(table))
	reader.Comma = detectDelimiter(headerLine)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, "unreadable participant table header")
	}
	cols := mapColumns(header)
	if cols.name < 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidFormat, "participant table has no name column")
	}

	var rows []models.RawConnectionRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A single unreadable line never aborts the file.
			s.logger.Warn("skipping unreadable export line", zap.Error(err))
			continue
		}

		row, ok := s.buildRow(record, cols)
		if !ok {
			continue
		}
		if len(rows) == 0 {
			row.IsOrganizer = true
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyParticipants, "")
	}

	s.metrics.RecordFileIngested()
	return rows, nil
}

// Analyze computes the transient classification for one parsed file.
func (s *IngestService) Analyze(rows []models.RawConnectionRow) models.CSVAnalysis {
	if len(rows) == 0 {
		return models.CSVAnalysis{Period: models.PeriodUnknown}
	}

	first := rows[0].Join
	last := rows[0].Leave
	names := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.Join.Before(first) {
			first = row.Join
		}
		if row.Leave.After(last) {
			last = row.Leave
		}
		names[strings.ToLower(row.Name)] = struct{}{}
	}

	period := models.PeriodMorning
	if first.Hour() >= afternoonBoundaryHour {
		period = models.PeriodAfternoon
	}

	return models.CSVAnalysis{
		Period:           period,
		FirstJoin:        &first,
		LastLeave:        &last,
		ParticipantCount: len(names),
	}
}

// ParsedExport pairs one parsed file with its classification.
type ParsedExport struct {
	Label    string
	Rows     []models.RawConnectionRow
	Analysis models.CSVAnalysis
}

// Route assigns parsed files to periods. An explicit label wins over the
// classification; when several files land on the same period the first by
// input order wins and the rest become conflict warnings.
func (s *IngestService) Route(files []ParsedExport) (morning, afternoon []models.RawConnectionRow, warnings []string) {
	for i, file := range files {
		period := file.Analysis.Period
		switch file.Label {
		case string(models.PeriodMorning):
			period = models.PeriodMorning
		case string(models.PeriodAfternoon):
			period = models.PeriodAfternoon
		}

		switch period {
		case models.PeriodMorning:
			if morning != nil {
				warnings = append(warnings, fmt.Sprintf("file %d also classifies as morning; ignored", i+1))
				continue
			}
			morning = file.Rows
		case models.PeriodAfternoon:
			if afternoon != nil {
				warnings = append(warnings, fmt.Sprintf("file %d also classifies as afternoon; ignored", i+1))
				continue
			}
			afternoon = file.Rows
		default:
			warnings = append(warnings, fmt.Sprintf("file %d yields no classifiable rows; ignored", i+1))
		}
	}
	return morning, afternoon, warnings
}

// englishTableMarkers are the name-column headers English-locale exports
// open the participant table with; the configured marker only covers the
// Italian exports.
var englishTableMarkers = []string{"full name"}

func (s *IngestService) locateTable(content string) (string, bool) {
	markers := append([]string{strings.ToLower(s.marker)}, englishTableMarkers...)
	offset := 0
	for _, line := range strings.SplitAfter(content, "\n") {
		lower := strings.ToLower(line)
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				return content[offset:], true
			}
		}
		offset += len(line)
	}
	return "", false
}

func (s *IngestService) buildRow(record []string, cols columnIndexes) (models.RawConnectionRow, bool) {
	rawName := cell(record, cols.name)
	name, role := cleanName(rawName)
	if name == "" {
		return models.RawConnectionRow{}, false
	}

	join, joinOK := ParseExportTimestamp(cell(record, cols.join), s.now)
	leave, leaveOK := ParseExportTimestamp(cell(record, cols.leave), s.now)
	if !joinOK && !leaveOK {
		// Neither timestamp is usable; the row carries no interval at all.
		return models.RawConnectionRow{}, false
	}
	if !joinOK || !leaveOK {
		s.logger.Warn("timestamp parse degraded to ingestion instant",
			zap.String("participant", name),
			zap.Bool("join_ok", joinOK),
			zap.Bool("leave_ok", leaveOK))
		s.metrics.RecordParseDegradation()
	}

	duration := 0
	if cols.duration >= 0 {
		duration = parseMinutes(cell(record, cols.duration))
	}

	guest := strings.Contains(role, "ospite") || strings.Contains(role, "guest")

	return models.RawConnectionRow{
		Name:            name,
		Email:           cell(record, cols.email),
		Join:            join,
		Leave:           leave,
		DurationMinutes: duration,
		IsGuest:         guest,
	}, true
}

type columnIndexes struct {
	name     int
	email    int
	join     int
	leave    int
	duration int
}

// mapColumns resolves header cells to known columns; unknown and extra
// columns are ignored. Both the Italian and English export headers occur in
// the wild.
func mapColumns(header []string) columnIndexes {
	cols := columnIndexes{name: -1, email: -1, join: -1, leave: -1, duration: -1}
	for i, cell := range header {
		switch normalizeHeader(cell) {
		case "nome completo", "full name", "name", "nome":
			if cols.name < 0 {
				cols.name = i
			}
		case "email", "e-mail", "indirizzo email":
			if cols.email < 0 {
				cols.email = i
			}
		case "ora di ingresso", "ora di partecipazione", "join time", "first join", "time joined":
			if cols.join < 0 {
				cols.join = i
			}
		case "ora di uscita", "ora di abbandono", "leave time", "last leave", "time exited":
			if cols.leave < 0 {
				cols.leave = i
			}
		case "durata", "duration", "durata della riunione", "in-meeting duration":
			if cols.duration < 0 {
				cols.duration = i
			}
		}
	}
	return cols
}

func normalizeHeader(cell string) string {
	cell = strings.TrimPrefix(cell, "\uFEFF")
	return strings.ToLower(strings.TrimSpace(cell))
}

// cleanName strips the trailing parenthetical role suffix and returns the
// bare name plus the lowercased suffix content.
func cleanName(raw string) (name, role string) {
	name = strings.TrimSpace(raw)
	if match := roleSuffixPattern.FindStringSubmatch(name); match != nil {
		role = strings.ToLower(match[1])
		name = strings.TrimSpace(roleSuffixPattern.ReplaceAllString(name, ""))
	}
	return name, role
}

func parseMinutes(raw string) int {
	digits := strings.Builder{}
	for _, r := range strings.TrimSpace(raw) {
		if r < '0' || r > '9' {
			break
		}
		digits.WriteRune(r)
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

func detectDelimiter(headerLine string) rune {
	best := ','
	bestCount := strings.Count(headerLine, ",")
	if n := strings.Count(headerLine, ";"); n > bestCount {
		best, bestCount = ';', n
	}
	if n := strings.Count(headerLine, "\t"); n > bestCount {
		best = '\t'
	}
	return best
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

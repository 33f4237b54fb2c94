package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrocorsi/register-api/internal/models"
	appErrors "github.com/registrocorsi/register-api/pkg/errors"
)

const morningExport = `Riepilogo riunione
Durata totale,4 ore
Partecipanti,3

Nome completo,Ora di ingresso,Ora di uscita,Durata,Email
Anna Bianchi (Organizzatore),08/07/2025 08:55:00,08/07/2025 13:02:00,247 min,anna@corso.it
Mario Rossi,08/07/2025 09:01:12,08/07/2025 12:58:40,237 min,mario@corso.it
Luca Verdi (Ospite),08/07/2025 09:30:00,08/07/2025 11:00:00,90 min,
`

const afternoonExport = `Nome completo,Ora di ingresso,Ora di uscita,Durata,Email
Anna Bianchi,08/07/2025 13:58:00,08/07/2025 18:01:00,243 min,anna@corso.it
Mario Rossi,08/07/2025 14:02:00,08/07/2025 17:55:00,233 min,mario@corso.it
`

func newTestIngestService() *IngestService {
	return NewIngestService(IngestConfig{Now: fixedNow}, nil, nil)
}

func TestIngestParseMorningExport(t *testing.T) {
	svc := newTestIngestService()

	rows, err := svc.Parse(morningExport)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Anna Bianchi", rows[0].Name)
	assert.True(t, rows[0].IsOrganizer, "first data row is the organizer")
	assert.False(t, rows[0].IsGuest)
	assert.Equal(t, "anna@corso.it", rows[0].Email)
	assert.Equal(t, 247, rows[0].DurationMinutes)

	assert.Equal(t, "Mario Rossi", rows[1].Name)
	assert.False(t, rows[1].IsOrganizer)
	assert.Equal(t, 9, rows[1].Join.Hour())
	assert.Equal(t, 1, rows[1].Join.Minute())

	assert.Equal(t, "Luca Verdi", rows[2].Name)
	assert.True(t, rows[2].IsGuest)
}

func TestIngestParseMarkerMissing(t *testing.T) {
	svc := newTestIngestService()

	_, err := svc.Parse("just,some,csv\nwithout,the,table\n")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidFormat.Code, appErr.Code)
}

func TestIngestParseCaseInsensitiveMarker(t *testing.T) {
	svc := newTestIngestService()

	content := strings.Replace(morningExport, "Nome completo", "NOME COMPLETO", 1)
	rows, err := svc.Parse(content)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestIngestParseSemicolonDelimiter(t *testing.T) {
	svc := newTestIngestService()

	content := "Nome completo;Ora di ingresso;Ora di uscita\n" +
		"Mario Rossi;08/07/2025 09:00:00;08/07/2025 13:00:00\n"
	rows, err := svc.Parse(content)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mario Rossi", rows[0].Name)
}

func TestIngestParseEnglishHeaders(t *testing.T) {
	svc := newTestIngestService()

	content := "Full Name,Join Time,Leave Time,Duration,Email\n" +
		"Mario Rossi,07/25/2025 09:00:00 AM,07/25/2025 01:00:00 PM,240 min,mario@corso.it\n"
	rows, err := svc.Parse(content)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 25, rows[0].Join.Day())
	assert.Equal(t, 9, rows[0].Join.Hour())
	assert.Equal(t, 13, rows[0].Leave.Hour())
}

func TestIngestParseDropsRowsWithoutUsableTimestamps(t *testing.T) {
	svc := newTestIngestService()

	content := "Nome completo,Ora di ingresso,Ora di uscita\n" +
		"Senza Orari,not a date,also broken\n" +
		"Mario Rossi,08/07/2025 09:00:00,08/07/2025 13:00:00\n"
	rows, err := svc.Parse(content)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mario Rossi", rows[0].Name)
	assert.True(t, rows[0].IsOrganizer, "organizer flag follows the first kept row")
}

func TestIngestParseKeepsRowWithOneDegradedTimestamp(t *testing.T) {
	svc := newTestIngestService()

	content := "Nome completo,Ora di ingresso,Ora di uscita\n" +
		"Mario Rossi,08/07/2025 09:00:00,broken\n"
	rows, err := svc.Parse(content)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Leave.Equal(fixedNow()), "unparseable leave falls back to the clock")
}

func TestIngestParseEmptyTable(t *testing.T) {
	svc := newTestIngestService()

	_, err := svc.Parse("Nome completo,Ora di ingresso,Ora di uscita\n")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptyParticipants.Code, appErrors.FromError(err).Code)
}

func TestIngestAnalyzeClassification(t *testing.T) {
	svc := newTestIngestService()

	morningRows, err := svc.Parse(morningExport)
	require.NoError(t, err)
	analysis := svc.Analyze(morningRows)
	assert.Equal(t, models.PeriodMorning, analysis.Period)
	assert.Equal(t, 3, analysis.ParticipantCount)
	require.NotNil(t, analysis.FirstJoin)
	assert.Equal(t, 8, analysis.FirstJoin.Hour())

	afternoonRows, err := svc.Parse(afternoonExport)
	require.NoError(t, err)
	analysis = svc.Analyze(afternoonRows)
	assert.Equal(t, models.PeriodAfternoon, analysis.Period)
}

func TestIngestRoute(t *testing.T) {
	svc := newTestIngestService()

	morningRows, err := svc.Parse(morningExport)
	require.NoError(t, err)
	afternoonRows, err := svc.Parse(afternoonExport)
	require.NoError(t, err)

	t.Run("auto classification", func(t *testing.T) {
		morning, afternoon, warnings := svc.Route([]ParsedExport{
			{Rows: morningRows, Analysis: svc.Analyze(morningRows)},
			{Rows: afternoonRows, Analysis: svc.Analyze(afternoonRows)},
		})
		assert.Len(t, morning, 3)
		assert.Len(t, afternoon, 2)
		assert.Empty(t, warnings)
	})

	t.Run("label wins over classification", func(t *testing.T) {
		morning, afternoon, warnings := svc.Route([]ParsedExport{
			{Label: "afternoon", Rows: morningRows, Analysis: svc.Analyze(morningRows)},
		})
		assert.Nil(t, morning)
		assert.Len(t, afternoon, 3)
		assert.Empty(t, warnings)
	})

	t.Run("duplicate period keeps first and warns", func(t *testing.T) {
		morning, _, warnings := svc.Route([]ParsedExport{
			{Rows: morningRows, Analysis: svc.Analyze(morningRows)},
			{Label: "morning", Rows: afternoonRows, Analysis: svc.Analyze(afternoonRows)},
		})
		assert.Len(t, morning, 3)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "also classifies as morning")
	})
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		raw      string
		wantName string
		wantRole string
	}{
		{raw: "Mario Rossi", wantName: "Mario Rossi", wantRole: ""},
		{raw: "Mario Rossi (Ospite)", wantName: "Mario Rossi", wantRole: "ospite"},
		{raw: "Mario Rossi (Guest)  ", wantName: "Mario Rossi", wantRole: "guest"},
		{raw: "Anna Bianchi (Organizzatore)", wantName: "Anna Bianchi", wantRole: "organizzatore"},
		{raw: "  ", wantName: "", wantRole: ""},
	}

	for _, tt := range tests {
		name, role := cleanName(tt.raw)
		assert.Equal(t, tt.wantName, name)
		assert.Equal(t, tt.wantRole, role)
	}
}

func TestIngestParseStripsHeaderByteOrderMark(t *testing.T) {
	svc := newTestIngestService()

	content := "\uFEFF" + "Nome completo,Ora di ingresso,Ora di uscita\n" +
		"Mario Rossi,08/07/2025 09:00:00,08/07/2025 13:00:00\n"
	rows, err := svc.Parse(content)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mario Rossi", rows[0].Name)
	assert.Equal(t, 9, rows[0].Join.Hour())
}

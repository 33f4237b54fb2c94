package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RegisterSlotCount is the hard capacity of the downstream document template.
// The document has exactly five participant rows; more participants are
// truncated with a warning, fewer are padded with empty fields.
const RegisterSlotCount = 5

// RegisterSlot holds the rendered fields for one participant row of the
// register document.
type RegisterSlot struct {
	Nome       string `json:"nome"`
	MattOraIn  string `json:"matt_ora_in"`
	MattOraOut string `json:"matt_ora_out"`
	PomeOraIn  string `json:"pome_ora_in"`
	PomeOraOut string `json:"pome_ora_out"`
	Presenza   string `json:"presenza"`
}

// RegisterFields is the flat, template-ready field record handed to the
// external document renderer. All values are strings and never null; absent
// fields carry the empty string.
type RegisterFields struct {
	Day           string `json:"day"`
	Month         string `json:"month"`
	Year          string `json:"year"`
	OrarioLezione string `json:"orariolezione"`
	Argomento     string `json:"argomento"`

	Slots []RegisterSlot `json:"slots"`
}

// Map flattens the record into the placeholder set expected by the renderer:
// day, month, year, orariolezione, argomento, nome1..5, MattOraIn1..5,
// MattOraOut1..5, PomeOraIn1..5, PomeOraOut1..5, presenza1..5.
func (f RegisterFields) Map() map[string]string {
	out := map[string]string{
		"day":           f.Day,
		"month":         f.Month,
		"year":          f.Year,
		"orariolezione": f.OrarioLezione,
		"argomento":     f.Argomento,
	}
	for i := 0; i < RegisterSlotCount; i++ {
		var slot RegisterSlot
		if i < len(f.Slots) {
			slot = f.Slots[i]
		}
		n := strconv.Itoa(i + 1)
		out["nome"+n] = slot.Nome
		out["MattOraIn"+n] = slot.MattOraIn
		out["MattOraOut"+n] = slot.MattOraOut
		out["PomeOraIn"+n] = slot.PomeOraIn
		out["PomeOraOut"+n] = slot.PomeOraOut
		out["presenza"+n] = slot.Presenza
	}
	return out
}

// DocumentFilename builds the register file name following the
// "<prefix>_<courseId>_<yyyy_MM_dd>.docx" convention. The course segment is
// omitted when the course identifier is empty.
func DocumentFilename(prefix, courseID string, date time.Time) string {
	if prefix == "" {
		prefix = "registro"
	}
	stamp := date.Format("2006_01_02")
	if courseID == "" {
		return fmt.Sprintf("%s_%s.docx", prefix, stamp)
	}
	return fmt.Sprintf("%s_%s_%s.docx", prefix, courseID, stamp)
}

// LessonDay is one computed and persisted register for a course day.
type LessonDay struct {
	ID               string          `db:"id" json:"id"`
	CourseID         string          `db:"course_id" json:"course_id"`
	Date             time.Time       `db:"date" json:"date"`
	ScheduleText     string          `db:"schedule_text" json:"schedule_text"`
	Argomento        *string         `db:"argomento" json:"argomento,omitempty"`
	ParticipantCount int             `db:"participant_count" json:"participant_count"`
	Fields           json.RawMessage `db:"fields" json:"fields"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// LessonDayFilter scopes lesson day listing queries.
type LessonDayFilter struct {
	CourseID string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

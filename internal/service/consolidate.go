package service

import (
	"sort"
	"strings"

	"github.com/registrocorsi/register-api/internal/models"
)

// ConsolidationResult is the per-day participant map flattened for the rest
// of the pipeline. The organizer is kept out of Participants: the lesson host
// is never subject to absence rules.
type ConsolidationResult struct {
	Participants []*models.ProcessedParticipant
	Organizer    *models.ProcessedParticipant
}

// ConsolidateSessions groups the routed rows by case-insensitive participant
// name, independently per period. Connection events violating the
// leave >= join invariant are discarded; the raw session row is kept as a
// trace of what the export contained. All state is local to the call.
func ConsolidateSessions(morning, afternoon []models.RawConnectionRow) ConsolidationResult {
	byKey := make(map[string]*models.ProcessedParticipant)
	organizerKey := ""

	add := func(row models.RawConnectionRow, period models.Period) {
		key := strings.ToLower(strings.TrimSpace(row.Name))
		if key == "" {
			return
		}
		p, ok := byKey[key]
		if !ok {
			p = &models.ProcessedParticipant{Name: row.Name, Email: row.Email}
			byKey[key] = p
		}
		if p.Email == "" {
			p.Email = row.Email
		}

		if row.IsOrganizer && organizerKey == "" {
			organizerKey = key
			p.IsOrganizer = true
		}

		event := models.ConnectionEvent{Join: row.Join, Leave: row.Leave}
		if period == models.PeriodAfternoon {
			p.Sessions.Afternoon = append(p.Sessions.Afternoon, row)
			if !event.Leave.Before(event.Join) {
				p.Connections.Afternoon = append(p.Connections.Afternoon, event)
			}
		} else {
			p.Sessions.Morning = append(p.Sessions.Morning, row)
			if !event.Leave.Before(event.Join) {
				p.Connections.Morning = append(p.Connections.Morning, event)
			}
		}
	}

	for _, row := range morning {
		add(row, models.PeriodMorning)
	}
	for _, row := range afternoon {
		add(row, models.PeriodAfternoon)
	}

	result := ConsolidationResult{}
	for key, p := range byKey {
		sortConnections(p)
		if key == organizerKey {
			result.Organizer = p
			continue
		}
		result.Participants = append(result.Participants, p)
	}

	sort.Slice(result.Participants, func(i, j int) bool {
		a := strings.ToLower(result.Participants[i].Name)
		b := strings.ToLower(result.Participants[j].Name)
		if a == b {
			return result.Participants[i].Name < result.Participants[j].Name
		}
		return a < b
	})

	return result
}

func sortConnections(p *models.ProcessedParticipant) {
	byJoin := func(events []models.ConnectionEvent) func(i, j int) bool {
		return func(i, j int) bool { return events[i].Join.Before(events[j].Join) }
	}
	sort.SliceStable(p.Connections.Morning, byJoin(p.Connections.Morning))
	sort.SliceStable(p.Connections.Afternoon, byJoin(p.Connections.Afternoon))

	bySessionJoin := func(rows []models.RawConnectionRow) func(i, j int) bool {
		return func(i, j int) bool { return rows[i].Join.Before(rows[j].Join) }
	}
	sort.SliceStable(p.Sessions.Morning, bySessionJoin(p.Sessions.Morning))
	sort.SliceStable(p.Sessions.Afternoon, bySessionJoin(p.Sessions.Afternoon))
}

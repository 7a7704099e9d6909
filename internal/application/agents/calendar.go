package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// IntentCalendar agenda eventos en Google Calendar.
const IntentCalendar = "calendar"

const calendarSchema = `{
  "type": "object",
  "required": ["summary", "start"],
  "properties": {
    "summary":     {"type": "string", "minLength": 1, "maxLength": 300},
    "description": {"type": "string"},
    "start":       {"type": "string", "format": "date-time"},
    "end":         {"type": "string", "format": "date-time"},
    "attendees":   {"type": "array", "items": {"type": "string", "format": "email"}, "maxItems": 50}
  },
  "additionalProperties": false
}`

type calendarPayload struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees"`
}

// CalendarAgent crea eventos en la agenda Google del usuario.
type CalendarAgent struct {
	client ports.CalendarClient
}

// NewCalendarAgent construye el agente.
func NewCalendarAgent(client ports.CalendarClient) *CalendarAgent {
	return &CalendarAgent{client: client}
}

// CalendarDescriptor descriptor del agente de agenda.
func CalendarDescriptor() Descriptor {
	return Descriptor{
		ID:                 IntentCalendar,
		RequiredCapability: entity.CapWorkspaceGoogle,
		AllowedAPIDomains:  []string{"www.googleapis.com", "oauth2.googleapis.com"},
		PayloadSchema:      calendarSchema,
	}
}

// Descriptor implementa Agent.
func (a *CalendarAgent) Descriptor() Descriptor { return CalendarDescriptor() }

// Execute implementa Agent.
func (a *CalendarAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	var p calendarPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return nil, egress.InvalidPayload("calendar: %v", err)
	}
	if p.End.IsZero() {
		p.End = p.Start.Add(time.Hour)
	}
	if !p.End.After(p.Start) {
		return nil, egress.InvalidPayload("calendar: end debe ser posterior a start")
	}
	id, err := a.client.CreateEvent(ctx, req.UserID, ports.CalendarEvent{
		Summary:     p.Summary,
		Description: p.Description,
		Start:       p.Start,
		End:         p.End,
		Attendees:   p.Attendees,
		RequestID:   req.RequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	return JSONResult(fmt.Sprintf("Evento \"%s\" agendado.", p.Summary), map[string]any{"event_id": id})
}

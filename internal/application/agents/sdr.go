package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// IntentSDR calificación de leads y seguimiento por WhatsApp.
const IntentSDR = "sdr"

// MessageSender envío saliente ya protegido por cumplimiento (compliance.Messenger).
type MessageSender interface {
	Send(ctx context.Context, msg ports.OutboundMessage) (string, error)
}

const sdrSchema = `{
  "type": "object",
  "required": ["lead_phone", "message"],
  "properties": {
    "lead_name":   {"type": "string", "maxLength": 200},
    "lead_phone":  {"type": "string", "pattern": "^[0-9]{10,15}$"},
    "message":     {"type": "string", "minLength": 1, "maxLength": 4000},
    "source":      {"type": "string"},
    "template_id": {"type": "string"}
  },
  "additionalProperties": false
}`

type sdrPayload struct {
	LeadName   string `json:"lead_name"`
	LeadPhone  string `json:"lead_phone"`
	Message    string `json:"message"`
	Source     string `json:"source"`
	TemplateID string `json:"template_id"`
}

// SDRAgent califica un lead con el LLM y le responde por WhatsApp.
type SDRAgent struct {
	llm    ports.LLMService
	sender MessageSender
	idem   ports.IdempotencyStore
}

// NewSDRAgent construye el agente.
func NewSDRAgent(llm ports.LLMService, sender MessageSender, idem ports.IdempotencyStore) *SDRAgent {
	return &SDRAgent{llm: llm, sender: sender, idem: idem}
}

// SDRDescriptor descriptor del agente SDR.
func SDRDescriptor() Descriptor {
	return Descriptor{
		ID:                 IntentSDR,
		RequiredCapability: entity.CapAgentSDR,
		AllowedAPIDomains:  []string{"api.anthropic.com", "generativelanguage.googleapis.com", "graph.facebook.com"},
		PayloadSchema:      sdrSchema,
	}
}

// Descriptor implementa Agent.
func (a *SDRAgent) Descriptor() Descriptor { return SDRDescriptor() }

// Execute implementa Agent.
func (a *SDRAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	var p sdrPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return nil, egress.InvalidPayload("sdr: %v", err)
	}
	q, err := a.llm.QualifyLead(ctx, dto.LeadInput{Name: p.LeadName, Phone: p.LeadPhone, Message: p.Message, Source: p.Source})
	if err != nil {
		return nil, fmt.Errorf("sdr: calificar lead: %w", err)
	}

	var messageID string
	dup, err := runOnce(ctx, a.idem, "sdr:"+req.RequestID, func() error {
		id, err := a.sender.Send(ctx, followUp(p, q))
		messageID = id
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sdr: enviar seguimiento: %w", err)
	}

	msg := fmt.Sprintf("Lead classificado como %s (score %d).", q.Stage, q.Score)
	if dup {
		msg = "Seguimento já enviado para este lead."
	}
	return JSONResult(msg, map[string]any{
		"qualification": q,
		"message_id":    messageID,
		"duplicate":     dup,
	})
}

// followUp arma el mensaje al lead. Con plantilla solo viajan los parámetros
// ({{1}} nombre, {{2}} próximo paso); el cuerpo aprobado lo pone Meta.
func followUp(p sdrPayload, q *dto.LeadQualificationDTO) ports.OutboundMessage {
	if p.TemplateID == "" {
		return ports.OutboundMessage{ContactPhone: p.LeadPhone, Body: q.Reply}
	}
	name := p.LeadName
	if name == "" {
		name = "cliente"
	}
	next := q.NextAction
	if next == "" {
		next = p.Message
	}
	return ports.OutboundMessage{ContactPhone: p.LeadPhone, TemplateID: p.TemplateID, Params: []string{name, next}}
}

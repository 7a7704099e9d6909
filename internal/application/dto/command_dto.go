package dto

import "encoding/json"

// CommandRequest comando ya normalizado por la UI (canal web).
type CommandRequest struct {
	ID      string          `json:"id,omitempty"`
	Intent  string          `json:"intent" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// CommandResponse resultado de una pasada del router. Nunca expone errores crudos.
type CommandResponse struct {
	CommandID    string          `json:"command_id"`
	State        string          `json:"state"`
	Outcome      string          `json:"outcome"`
	Code         string          `json:"code,omitempty"`
	Message      string          `json:"message,omitempty"`
	Action       string          `json:"action,omitempty"`
	RequiredTier string          `json:"required_tier,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// WhatsAppInbound mensaje entrante ya normalizado por el gateway de WhatsApp.
// Intent vacío = solo refresca la ventana de mensajería.
type WhatsAppInbound struct {
	From      string          `json:"from" validate:"required"`
	MessageID string          `json:"message_id"`
	Timestamp int64           `json:"timestamp"`
	Intent    string          `json:"intent,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

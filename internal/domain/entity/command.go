package entity

import (
	"encoding/json"
	"time"
)

// Channel origen del comando.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
)

// Command orden estructurada producida aguas arriba (UI o NLU de WhatsApp).
// Inmutable una vez creada; Intent corresponde 1:1 con el ID de un sub-agente.
type Command struct {
	ID         string
	UserID     string
	Channel    Channel
	Intent     string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// CommandState estados del router para un comando.
type CommandState string

const (
	CommandReceived           CommandState = "received"
	CommandEntitlementChecked CommandState = "entitlement_checked"
	CommandDenied             CommandState = "denied"
	CommandDispatching        CommandState = "dispatching"
	CommandCompleted          CommandState = "completed"
	CommandFailed             CommandState = "failed"
)

// Terminal informa si el estado es final.
func (s CommandState) Terminal() bool {
	return s == CommandDenied || s == CommandCompleted || s == CommandFailed
}

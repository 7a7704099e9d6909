package ports

import "context"

// OutboundMessage mensaje saliente de WhatsApp: plantilla o texto libre.
type OutboundMessage struct {
	ContactPhone string
	TemplateID   string // vacío = texto libre
	Body         string
	Params       []string
}

// WhatsAppSender transporte de la Cloud API. Solo lo invoca compliance.Messenger.
type WhatsAppSender interface {
	Send(ctx context.Context, msg OutboundMessage) (messageID string, err error)
}

// AuditPublisher fan-out opcional de entradas de auditoría (NATS, Kafka).
type AuditPublisher interface {
	Name() string
	Publish(ctx context.Context, key string, payload []byte) error
}

package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

var _ ports.AuditPublisher = (*NATSPublisher)(nil)

// NATSPublisher copia de la auditoría en un subject NATS.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewNATSPublisher conecta con reconexión infinita.
func NewNATSPublisher(url, subject, name string) (*NATSPublisher, error) {
	if url == "" || subject == "" {
		return nil, errors.New("nats: url y subject son obligatorios")
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: conectar: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// Name implementa ports.AuditPublisher.
func (p *NATSPublisher) Name() string { return "nats" }

// Publish publica con el actor en la cabecera.
func (p *NATSPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(p.subject)
	msg.Header.Set("Meu-Agente-Actor", key)
	msg.Data = payload
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats: publicar en %s: %w", p.subject, err)
	}
	return nil
}

// Close vacía los pendientes y cierra.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

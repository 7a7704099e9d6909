package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shopify/sarama"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

var _ ports.AuditPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher copia de la auditoría en un tópico Kafka. La clave es el actor:
// las entradas de un usuario caen en la misma partición y conservan el orden.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// KafkaConfig configuración base del productor síncrono.
func KafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// NewKafkaPublisher conecta con los brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka: brokers y topic son obligatorios")
	}
	p, err := sarama.NewSyncProducer(brokers, KafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka: productor: %w", err)
	}
	return NewKafkaPublisherWithProducer(p, topic), nil
}

// NewKafkaPublisherWithProducer usa un productor ya construido (tests con sarama/mocks).
func NewKafkaPublisherWithProducer(p sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

// Name implementa ports.AuditPublisher.
func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish envía y espera el ack de todas las réplicas.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("kafka: publicar en %s: %w", p.topic, err)
	}
	return nil
}

// Close cierra el productor.
func (p *KafkaPublisher) Close() error { return p.producer.Close() }

package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/memory"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/messaging"
)

func TestKafkaPublisher_ClavePorActor(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e entity.AuditEntry
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Action != entity.ActionBackupManual {
			return errors.New("acción inesperada: " + e.Action)
		}
		return nil
	})
	pub := messaging.NewKafkaPublisherWithProducer(producer, "meuagente.audit")
	svc := audit.NewService(memory.NewAuditRepository(), zerolog.Nop(), pub)

	require.NoError(t, svc.Record(context.Background(), "u1", entity.ActionBackupManual, "b1", entity.OutcomeAllowed, "", nil))
	require.NoError(t, producer.Close())
}

func TestKafkaPublisher_ErrorNoRompeElAppend(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	repo := memory.NewAuditRepository()
	svc := audit.NewService(repo, zerolog.Nop(), messaging.NewKafkaPublisherWithProducer(producer, "t"))

	require.NoError(t, svc.Record(context.Background(), "u1", entity.ActionDataErased, "u1", entity.OutcomeAllowed, "", nil))
	assert.Len(t, repo.All(), 1, "el repositorio primario es la fuente de verdad")
	require.NoError(t, producer.Close())
}

func TestKafkaPublisher_DirectoDevuelveError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	pub := messaging.NewKafkaPublisherWithProducer(producer, "t")
	assert.Equal(t, "kafka", pub.Name())
	assert.ErrorIs(t, pub.Publish(context.Background(), "u1", []byte(`{}`)), sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestNewPublishers_ConfigIncompleta(t *testing.T) {
	_, err := messaging.NewKafkaPublisher(nil, "t")
	assert.Error(t, err)
	_, err = messaging.NewNATSPublisher("", "s", "meu-agente")
	assert.Error(t, err)
}

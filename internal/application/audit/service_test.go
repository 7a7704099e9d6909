package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/memory"
)

type capturePublisher struct {
	mu   sync.Mutex
	name string
	err  error
	got  [][]byte
}

func (p *capturePublisher) Name() string { return p.name }

func (p *capturePublisher) Publish(_ context.Context, _ string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, payload)
	return p.err
}

func TestAppend_CompletaIDyTimestampYReplica(t *testing.T) {
	repo := memory.NewAuditRepository()
	pub := &capturePublisher{name: "nats"}
	svc := audit.NewService(repo, zerolog.Nop(), pub)

	e := &entity.AuditEntry{ActorUserID: "u1", Action: "command.sdr", SubjectID: "c1", Outcome: entity.OutcomeAllowed}
	require.NoError(t, svc.Append(context.Background(), e))

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	require.Len(t, repo.All(), 1)
	require.Len(t, pub.got, 1)

	var published entity.AuditEntry
	require.NoError(t, json.Unmarshal(pub.got[0], &published))
	assert.Equal(t, e.ID, published.ID)
}

func TestAppend_FalloDePublisherNoBloquea(t *testing.T) {
	repo := memory.NewAuditRepository()
	broken := &capturePublisher{name: "kafka", err: errors.New("broker caído")}
	svc := audit.NewService(repo, zerolog.Nop(), broken)

	err := svc.Record(context.Background(), "u1", entity.ActionBackupManual, "b1", entity.OutcomeError, "verify", nil)
	require.NoError(t, err)
	assert.Len(t, repo.All(), 1, "la entrada primaria debe quedar escrita")
}

func TestAppend_ValidaCamposObligatorios(t *testing.T) {
	svc := audit.NewService(memory.NewAuditRepository(), zerolog.Nop())
	err := svc.Append(context.Background(), &entity.AuditEntry{Action: "x", Outcome: entity.OutcomeAllowed})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListByActor_SoloPropiasYRecientesPrimero(t *testing.T) {
	repo := memory.NewAuditRepository()
	svc := audit.NewService(repo, zerolog.Nop())
	ctx := context.Background()
	for _, subject := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Record(ctx, "u1", "command.finance_entry", subject, entity.OutcomeAllowed, "", nil))
	}
	require.NoError(t, svc.Record(ctx, "u2", "command.finance_entry", "z", entity.OutcomeAllowed, "", nil))

	list, err := svc.ListByActor(ctx, "u1", 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].SubjectID)
	assert.Equal(t, "b", list[1].SubjectID)

	list, err = svc.ListByActor(ctx, "u1", 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].SubjectID)
}

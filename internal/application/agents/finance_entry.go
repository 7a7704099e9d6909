package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

// IntentFinanceEntry registro de entradas y salidas.
const IntentFinanceEntry = "finance_entry"

// recordNamespace espacio de UUIDv5: el ID del registro se deriva del request id.
var recordNamespace = uuid.MustParse("6f1d1c5e-2f7a-4a57-9a8e-4d3f0b7c2a11")

const financeSchema = `{
  "type": "object",
  "required": ["type", "category", "amount"],
  "properties": {
    "type":        {"enum": ["entrada", "saida"]},
    "category":    {"type": "string", "minLength": 1, "maxLength": 100},
    "amount":      {"type": "string", "pattern": "^[0-9]+(\\.[0-9]{1,2})?$"},
    "description": {"type": "string", "maxLength": 500},
    "date":        {"type": "string", "format": "date"}
  },
  "additionalProperties": false
}`

type financePayload struct {
	Type        string `json:"type"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// FinanceEntryAgent persiste un FinancialRecord. Es el único agente que escribe
// datos del usuario, por eso se declara Mutating.
type FinanceEntryAgent struct {
	records repository.FinancialRecordRepository
	idem    ports.IdempotencyStore
	now     func() time.Time
}

// NewFinanceEntryAgent construye el agente.
func NewFinanceEntryAgent(records repository.FinancialRecordRepository, idem ports.IdempotencyStore) *FinanceEntryAgent {
	return &FinanceEntryAgent{records: records, idem: idem, now: time.Now}
}

// FinanceEntryDescriptor descriptor del agente financiero.
func FinanceEntryDescriptor() Descriptor {
	return Descriptor{
		ID:                 IntentFinanceEntry,
		RequiredCapability: entity.CapFinanceEntry,
		PayloadSchema:      financeSchema,
		Mutating:           true,
	}
}

// Descriptor implementa Agent.
func (a *FinanceEntryAgent) Descriptor() Descriptor { return FinanceEntryDescriptor() }

// Execute implementa Agent.
func (a *FinanceEntryAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	var p financePayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return nil, egress.InvalidPayload("finance_entry: %v", err)
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, egress.InvalidPayload("finance_entry: amount inválido %q", p.Amount)
	}
	date := a.now().UTC().Truncate(24 * time.Hour)
	if p.Date != "" {
		if date, err = time.Parse("2006-01-02", p.Date); err != nil {
			return nil, egress.InvalidPayload("finance_entry: date: %v", err)
		}
	}

	rec := &entity.FinancialRecord{
		ID:          uuid.NewSHA1(recordNamespace, []byte(req.UserID+":"+req.RequestID)).String(),
		UserID:      req.UserID,
		Type:        p.Type,
		Category:    p.Category,
		Amount:      amount,
		Description: p.Description,
		Date:        date,
		CreatedAt:   a.now().UTC(),
	}
	dup, err := runOnce(ctx, a.idem, "finance:"+req.UserID+":"+req.RequestID, func() error {
		return a.records.Create(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("finance_entry: guardar: %w", err)
	}
	msg := fmt.Sprintf("Registro de %s de R$ %s salvo em %s.", p.Type, amount.StringFixed(2), p.Category)
	if dup {
		msg = "Registro já salvo anteriormente."
	}
	return JSONResult(msg, rec)
}

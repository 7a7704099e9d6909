package agents

import (
	"context"
	"encoding/json"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// Descriptor lo que el router necesita saber de un sub-agente antes de ejecutarlo.
type Descriptor struct {
	ID                 string
	RequiredCapability entity.Capability
	// AllowedAPIDomains hosts exactos (FQDN) a los que el agente puede llamar.
	AllowedAPIDomains []string
	// PayloadSchema JSON Schema (draft 2020-12) del payload; vacío = sin validación.
	PayloadSchema string
	// Mutating el agente escribe datos financieros del usuario.
	Mutating bool
}

// Request entrada de una ejecución. RequestID es estable entre reintentos del
// mismo comando para que el agente pueda descartar duplicados.
type Request struct {
	RequestID string
	UserID    string
	Channel   entity.Channel
	Payload   json.RawMessage
}

// Result salida de una ejecución exitosa.
type Result struct {
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Agent contrato común de los sub-agentes. El registry los guarda detrás de
// esta interfaz: agregar un agente no toca al router.
type Agent interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, req Request) (*Result, error)
}

// JSONResult arma un Result serializando data.
func JSONResult(message string, data any) (*Result, error) {
	if data == nil {
		return &Result{Message: message}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Result{Message: message, Data: raw}, nil
}

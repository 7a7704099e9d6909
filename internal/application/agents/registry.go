package agents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

type registered struct {
	agent  Agent
	desc   Descriptor
	schema *jsonschema.Schema
}

// Registry catálogo de sub-agentes por intent (intent == Descriptor.ID).
type Registry struct {
	mu     sync.RWMutex
	agents map[string]registered
}

// NewRegistry construye el registry vacío.
func NewRegistry() *Registry {
	return &Registry{agents: map[string]registered{}}
}

// Register agrega un agente. Rechaza ids duplicados, descriptores incompletos y
// esquemas que no compilan.
func (r *Registry) Register(a Agent) error {
	d := a.Descriptor()
	if d.ID == "" || d.RequiredCapability == "" {
		return fmt.Errorf("agents: descriptor incompleto: %+v", d)
	}
	var compiled *jsonschema.Schema
	if d.PayloadSchema != "" {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		c.AssertFormat = true
		url := fmt.Sprintf("https://meuagente.local/agents/%s.schema.json", d.ID)
		if err := c.AddResource(url, strings.NewReader(d.PayloadSchema)); err != nil {
			return fmt.Errorf("agents: esquema de %s: %w", d.ID, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return fmt.Errorf("agents: compilar esquema de %s: %w", d.ID, err)
		}
		compiled = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[d.ID]; ok {
		return fmt.Errorf("agents: %q ya registrado", d.ID)
	}
	r.agents[d.ID] = registered{agent: a, desc: d, schema: compiled}
	return nil
}

// MustRegister igual que Register pero entra en pánico (wiring en main).
func (r *Registry) MustRegister(agents ...Agent) {
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
}

// Lookup agente del intent; domain.ErrUnknownIntent si no hay.
func (r *Registry) Lookup(intent string) (Agent, Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.agents[intent]
	if !ok {
		return nil, Descriptor{}, fmt.Errorf("%w: %q", domain.ErrUnknownIntent, intent)
	}
	return reg.agent, reg.desc, nil
}

// Validate valida el payload contra el esquema del agente.
func (r *Registry) Validate(intent string, payload json.RawMessage) error {
	r.mu.RLock()
	reg, ok := r.agents[intent]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownIntent, intent)
	}
	if reg.schema == nil {
		return nil
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return egress.InvalidPayload("JSON mal formado: %v", err)
	}
	if err := reg.schema.Validate(v); err != nil {
		return egress.InvalidPayload("%v", err)
	}
	return nil
}

// Descriptors lista ordenada por id.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.agents))
	for _, reg := range r.agents {
		out = append(out, reg.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

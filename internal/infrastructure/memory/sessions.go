package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
)

var _ repository.SessionStore = (*SessionStore)(nil)

const sessionStripes = 64

// SessionStore ventanas de mensajería por contacto. Cada contacto cae en una
// franja con su propio mutex: Touch serializa por contacto sin un lock global.
type SessionStore struct {
	stripes [sessionStripes]sessionStripe
}

type sessionStripe struct {
	mu       sync.RWMutex
	sessions map[string]time.Time
}

// NewSessionStore construye el store vacío.
func NewSessionStore() *SessionStore {
	s := &SessionStore{}
	for i := range s.stripes {
		s.stripes[i].sessions = map[string]time.Time{}
	}
	return s
}

func (s *SessionStore) stripe(phone string) *sessionStripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(phone))
	return &s.stripes[h.Sum32()%sessionStripes]
}

// Touch abre o extiende la ventana. Un evento más viejo que el registrado no la retrocede.
func (s *SessionStore) Touch(_ context.Context, phone string, at time.Time) (entity.MessagingSession, error) {
	st := s.stripe(phone)
	st.mu.Lock()
	defer st.mu.Unlock()
	if cur, ok := st.sessions[phone]; !ok || at.After(cur) {
		st.sessions[phone] = at
	}
	return entity.MessagingSession{ContactPhone: phone, WindowOpenedAt: st.sessions[phone]}, nil
}

// Get (nil, nil) si el contacto nunca escribió.
func (s *SessionStore) Get(_ context.Context, phone string) (*entity.MessagingSession, error) {
	st := s.stripe(phone)
	st.mu.RLock()
	defer st.mu.RUnlock()
	at, ok := st.sessions[phone]
	if !ok {
		return nil, nil
	}
	return &entity.MessagingSession{ContactPhone: phone, WindowOpenedAt: at}, nil
}

var _ repository.TemplateRepository = (*TemplateRepo)(nil)

// TemplateRepo plantillas de WhatsApp en memoria.
type TemplateRepo struct {
	mu   sync.RWMutex
	byID map[string]entity.Template
}

// NewTemplateRepository construye el repositorio con las plantillas dadas.
func NewTemplateRepository(templates ...entity.Template) *TemplateRepo {
	r := &TemplateRepo{byID: map[string]entity.Template{}}
	for _, t := range templates {
		r.byID[t.ID] = t
	}
	return r
}

// Get (nil, nil) si no existe.
func (r *TemplateRepo) Get(_ context.Context, id string) (*entity.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Upsert crea o reemplaza la plantilla.
func (r *TemplateRepo) Upsert(_ context.Context, t *entity.Template) error {
	r.mu.Lock()
	r.byID[t.ID] = *t
	r.mu.Unlock()
	return nil
}

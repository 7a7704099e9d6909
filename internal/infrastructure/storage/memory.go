package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

var _ ports.BlobStore = (*MemoryStore)(nil)

const memScheme = "mem://"

// MemoryStore blob store en memoria (modo demo y tests).
type MemoryStore struct {
	mu      sync.RWMutex
	prefix  string
	objects map[string][]byte
}

// NewMemoryStore construye el store vacío.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{prefix: prefix, objects: map[string][]byte{}}
}

// Put guarda una copia de blob; nunca sobrescribe.
func (s *MemoryStore) Put(_ context.Context, name string, blob []byte) (string, error) {
	key := s.prefix + name
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok {
		return "", domain.ErrBlobExists
	}
	s.objects[key] = append([]byte(nil), blob...)
	return memScheme + key, nil
}

// Get devuelve una copia del blob.
func (s *MemoryStore) Get(_ context.Context, location string) ([]byte, error) {
	key, ok := strings.CutPrefix(location, memScheme)
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return append([]byte(nil), b...), nil
}

// Corrupt altera un byte del objeto; solo para tests de integridad.
func (s *MemoryStore) Corrupt(location string) bool {
	key, _ := strings.CutPrefix(location, memScheme)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok || len(b) == 0 {
		return false
	}
	b[len(b)-1] ^= 0xff
	return true
}

// Len cantidad de objetos guardados.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

package google

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore tokens OAuth de Google Workspace por usuario.
// Get devuelve (nil, nil) si el usuario nunca conectó su cuenta.
type TokenStore interface {
	Get(ctx context.Context, userID string) (*oauth2.Token, error)
	Save(ctx context.Context, userID string, tok *oauth2.Token) error
}

// MemoryTokenStore implementación en memoria (desarrollo y tests).
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]oauth2.Token
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore construye el store vacío.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]oauth2.Token{}}
}

func (s *MemoryTokenStore) Get(_ context.Context, userID string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[userID]
	if !ok {
		return nil, nil
	}
	return &tok, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, userID string, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = *tok
	return nil
}

// OAuthConfig configuración OAuth2 del cliente de Google.
func OAuthConfig(clientID, clientSecret string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: scopes,
	}
}

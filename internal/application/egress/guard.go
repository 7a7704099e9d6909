// Package egress acota la salida a red de los sub-agentes y de los adaptadores
// que los sirven, y clasifica sus errores para la política de reintentos.
package egress

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/meu-agente-api/internal/domain"
)

// Guard http.RoundTripper que solo deja salir requests hacia los hosts
// permitidos. El bloqueo ocurre antes de abrir cualquier conexión.
type Guard struct {
	owner   string
	allowed map[string]struct{}
	next    http.RoundTripper
}

// NewGuard construye el guard para owner (id del agente o adaptador).
// next nil usa http.DefaultTransport.
func NewGuard(owner string, allowedDomains []string, next http.RoundTripper) *Guard {
	allowed := make(map[string]struct{}, len(allowedDomains))
	for _, d := range allowedDomains {
		allowed[normalizeHost(d)] = struct{}{}
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &Guard{owner: owner, allowed: allowed, next: next}
}

// Allows informa si el host está en la lista (coincidencia exacta, sin comodines).
func (g *Guard) Allows(host string) bool {
	_, ok := g.allowed[normalizeHost(host)]
	return ok
}

// RoundTrip implementa http.RoundTripper.
func (g *Guard) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Hostname()
	if !g.Allows(host) {
		return nil, fmt.Errorf("%w: %s → %s", domain.ErrDomainNotAllowed, g.owner, host)
	}
	return g.next.RoundTrip(req)
}

// NewHTTPClient cliente HTTP montado sobre un Guard, con timeout y tope de redirecciones.
func NewHTTPClient(owner string, allowedDomains []string, next http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: NewGuard(owner, allowedDomains, next),
		Timeout:   25 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimSuffix(h, ".")
}

package agents

import (
	"net/http"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
)

// NewHTTPClient cliente HTTP para un agente; todo cliente entregado a un agente
// (directo o dentro de un adaptador) se construye con esta función.
func NewHTTPClient(d Descriptor, next http.RoundTripper) *http.Client {
	return egress.NewHTTPClient(d.ID, d.AllowedAPIDomains, next)
}

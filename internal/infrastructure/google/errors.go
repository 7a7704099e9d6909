package google

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

// classify traduce errores de Google a la taxonomía de los sub-agentes:
// refresh rechazado o 401 → AuthExpired; 429/5xx o red → reintentable.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrDomainNotAllowed) {
		return err
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return egress.AuthExpired(err)
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		switch {
		case ge.Code == http.StatusUnauthorized:
			return egress.AuthExpired(err)
		case ge.Code == http.StatusTooManyRequests || ge.Code >= 500:
			return egress.Retryable(err)
		default:
			return err
		}
	}
	if ctx.Err() != nil {
		return err
	}
	return egress.Retryable(err)
}

package egress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/domain"
)

// Kind clasificación de un error de sub-agente o adaptador externo para la política de reintentos.
type Kind int

const (
	// KindPermanent no se reintenta (payload inválido, dominio no permitido, defecto).
	KindPermanent Kind = iota
	// KindRetryable fallo transitorio (5xx, timeout, red).
	KindRetryable
	// KindAuthExpired token OAuth vencido; se reintenta por si el TokenSource lo
	// renueva y, si persiste, se pide reautenticación.
	KindAuthExpired
	// KindDenied negación de cumplimiento o de plan detectada dentro del agente.
	KindDenied
)

func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindAuthExpired:
		return "auth_expired"
	case KindDenied:
		return "denied"
	default:
		return "permanent"
	}
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marca un error upstream como transitorio.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// AuthExpired envuelve un error de credencial vencida.
func AuthExpired(err error) error {
	if err == nil {
		return domain.ErrAuthExpired
	}
	return fmt.Errorf("%w: %w", domain.ErrAuthExpired, err)
}

// InvalidPayload error permanente de validación.
func InvalidPayload(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// Classify decide la política para un error devuelto por Execute.
// Lo que no se reconoce es permanente: un error desconocido no se reintenta.
func Classify(err error) Kind {
	var re *retryableError
	switch {
	case err == nil:
		return KindPermanent
	case errors.Is(err, domain.ErrDomainNotAllowed),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrBackupIntegrity):
		return KindPermanent
	case errors.Is(err, domain.ErrComplianceWindowClosed),
		errors.Is(err, domain.ErrTemplateNotApproved),
		errors.Is(err, domain.ErrEntitlementDenied),
		errors.Is(err, domain.ErrRestoreInProgress):
		return KindDenied
	case errors.Is(err, domain.ErrAuthExpired):
		return KindAuthExpired
	case errors.As(err, &re),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, domain.ErrSubAgentUnavailable):
		return KindRetryable
	default:
		return KindPermanent
	}
}

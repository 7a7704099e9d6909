package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

// transportError el bloqueo del egress.Guard es permanente; lo demás (red,
// timeout) se reintenta.
func transportError(ctx context.Context, provider string, err error) error {
	if errors.Is(err, domain.ErrDomainNotAllowed) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("AI: %s timeout o cancelación: %w", provider, ctx.Err())
	}
	return egress.Retryable(fmt.Errorf("AI: %s llamada HTTP fallida: %w", provider, err))
}

// statusError 429 y 5xx son transitorios; el resto de 4xx es permanente.
func statusError(provider string, status int, msg string) error {
	err := fmt.Errorf("AI: %s HTTP %d: %s", provider, status, msg)
	if status == http.StatusTooManyRequests || status >= 500 {
		return egress.Retryable(err)
	}
	return err
}

// NewLLM elige el proveedor configurado ("anthropic" por defecto o "gemini").
func NewLLM(provider, apiKey, model string, httpClient *http.Client) (ports.LLMService, error) {
	switch provider {
	case "", "anthropic":
		return NewAnthropicService(apiKey, model, httpClient), nil
	case "gemini":
		return NewGeminiService(apiKey, model, httpClient), nil
	default:
		return nil, fmt.Errorf("AI: proveedor desconocido %q", provider)
	}
}

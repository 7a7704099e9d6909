package egress_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Guard
// ──────────────────────────────────────────────────────────────────────────────

func TestGuard_BloqueaHostNoPermitidoSinConectar(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := egress.NewHTTPClient("whatsapp", []string{"graph.facebook.com"}, srv.Client().Transport)
	_, err := client.Get(srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDomainNotAllowed)
	assert.Contains(t, err.Error(), "whatsapp")
	assert.Zero(t, hits.Load())

	allowed := egress.NewHTTPClient("local", []string{"127.0.0.1"}, srv.Client().Transport)
	resp, err := allowed.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), hits.Load())
}

func TestGuard_SinSubdominiosImplicitos(t *testing.T) {
	g := egress.NewGuard("x", []string{"googleapis.com"}, nil)
	assert.True(t, g.Allows("googleapis.com"))
	assert.False(t, g.Allows("www.googleapis.com"))
	assert.False(t, g.Allows("evilgoogleapis.com"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Clasificación de errores
// ──────────────────────────────────────────────────────────────────────────────

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want egress.Kind
	}{
		{egress.Retryable(errors.New("502")), egress.KindRetryable},
		{fmt.Errorf("envuelto: %w", egress.Retryable(errors.New("503"))), egress.KindRetryable},
		{context.DeadlineExceeded, egress.KindRetryable},
		{egress.AuthExpired(errors.New("invalid_grant")), egress.KindAuthExpired},
		{egress.InvalidPayload("x"), egress.KindPermanent},
		{fmt.Errorf("x: %w", domain.ErrDomainNotAllowed), egress.KindPermanent},
		{domain.ErrComplianceWindowClosed, egress.KindDenied},
		{domain.ErrEntitlementDenied, egress.KindDenied},
		{errors.New("desconocido"), egress.KindPermanent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, egress.Classify(tc.err), tc.err.Error())
	}
}

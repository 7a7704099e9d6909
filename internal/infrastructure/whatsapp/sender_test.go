package whatsapp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/whatsapp"
)

func TestCloudSender_Plantilla(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/123/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	s := whatsapp.NewCloudSender(srv.URL, "tok", "123", srv.Client())
	id, err := s.Send(context.Background(), ports.OutboundMessage{ContactPhone: "5511949746110", TemplateID: "alerta_campanha", Params: []string{"CPC alto"}})
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", id)
	assert.Equal(t, "template", got["type"])
	tpl := got["template"].(map[string]any)
	assert.Equal(t, "alerta_campanha", tpl["name"])
	assert.Equal(t, "pt_BR", tpl["language"].(map[string]any)["code"])
	assert.Nil(t, got["text"])
}

func TestCloudSender_TextoLibre(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.2"}]}`))
	}))
	defer srv.Close()

	_, err := whatsapp.NewCloudSender(srv.URL, "tok", "123", srv.Client()).
		Send(context.Background(), ports.OutboundMessage{ContactPhone: "5511949746110", Body: "Olá"})
	require.NoError(t, err)
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "Olá", got["text"].(map[string]any)["body"])
}

func TestCloudSender_ErroresClasificados(t *testing.T) {
	cases := []struct {
		status int
		kind   egress.Kind
	}{
		{http.StatusTooManyRequests, egress.KindRetryable},
		{http.StatusBadGateway, egress.KindRetryable},
		{http.StatusUnauthorized, egress.KindAuthExpired},
		{http.StatusBadRequest, egress.KindPermanent},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"falha","type":"OAuthException","code":131047}}`))
		}))
		_, err := whatsapp.NewCloudSender(srv.URL, "tok", "123", srv.Client()).
			Send(context.Background(), ports.OutboundMessage{ContactPhone: "5511949746110", Body: "x"})
		srv.Close()
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, egress.Classify(err), "status %d", tc.status)
	}
}

func TestCloudSender_GuardPorDefectoSoloGraph(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	_, err := whatsapp.NewCloudSender(srv.URL, "tok", "123", nil).
		Send(context.Background(), ports.OutboundMessage{ContactPhone: "5511949746110", Body: "x"})
	assert.ErrorIs(t, err, domain.ErrDomainNotAllowed)
	assert.Zero(t, calls)
}

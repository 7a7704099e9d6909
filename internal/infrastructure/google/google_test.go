package google_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jhoicas/meu-agente-api/internal/application/agents"
	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/infrastructure/google"
)

const reqID = "7f9c2ba4-e88f-4c2a-9d3b-1a2b3c4d5e6f"

type calendarFake struct {
	srv         *httptest.Server
	eventStatus int
	tokenStatus int
	tokenCalls  atomic.Int32
	eventCalls  atomic.Int32
	lastAuth    atomic.Value
	lastEventID atomic.Value
}

func newCalendarFake(t *testing.T) *calendarFake {
	f := &calendarFake{eventStatus: http.StatusOK, tokenStatus: http.StatusOK}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/token":
			f.tokenCalls.Add(1)
			w.WriteHeader(f.tokenStatus)
			if f.tokenStatus != http.StatusOK {
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"novo","token_type":"Bearer","expires_in":3600}`))
		case strings.HasSuffix(r.URL.Path, "/calendars/primary/events"):
			f.eventCalls.Add(1)
			f.lastAuth.Store(r.Header.Get("Authorization"))
			var ev struct {
				ID string `json:"id"`
			}
			_ = json.NewDecoder(r.Body).Decode(&ev)
			f.lastEventID.Store(ev.ID)
			w.WriteHeader(f.eventStatus)
			if f.eventStatus != http.StatusOK {
				_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(f.eventStatus) + `,"message":"falha"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"` + ev.ID + `","status":"confirmed"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *calendarFake) client(tokens google.TokenStore) *google.CalendarClient {
	cfg := &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: f.srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
	}
	return google.NewCalendarClient(cfg, tokens, f.srv.Client()).WithEndpoint(f.srv.URL + "/calendar/v3/")
}

func event() ports.CalendarEvent {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	return ports.CalendarEvent{Summary: "Reunião", Start: start, End: start.Add(time.Hour), Attendees: []string{"a@x.com"}, RequestID: reqID}
}

func storeWith(t *testing.T, tok *oauth2.Token) *google.MemoryTokenStore {
	s := google.NewMemoryTokenStore()
	if tok != nil {
		require.NoError(t, s.Save(context.Background(), "u1", tok))
	}
	return s
}

// ── Calendar ───────────────────────────────────────────────────────────────────

func TestCalendar_CreaEventoConIDDerivadoDelRequest(t *testing.T) {
	f := newCalendarFake(t)
	c := f.client(storeWith(t, &oauth2.Token{AccessToken: "vigente", Expiry: time.Now().Add(time.Hour)}))

	id, err := c.CreateEvent(context.Background(), "u1", event())
	require.NoError(t, err)
	assert.Equal(t, "7f9c2ba4e88f4c2a9d3b1a2b3c4d5e6f", id)
	assert.Equal(t, id, f.lastEventID.Load())
	assert.Equal(t, "Bearer vigente", f.lastAuth.Load())
	assert.Zero(t, f.tokenCalls.Load())
}

func TestCalendar_TokenVencidoSeRenuevaYSePersiste(t *testing.T) {
	f := newCalendarFake(t)
	store := storeWith(t, &oauth2.Token{AccessToken: "velho", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)})

	_, err := f.client(store).CreateEvent(context.Background(), "u1", event())
	require.NoError(t, err)
	assert.Equal(t, "Bearer novo", f.lastAuth.Load())

	saved, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "novo", saved.AccessToken)
}

func TestCalendar_RefreshRechazadoEsAuthExpired(t *testing.T) {
	f := newCalendarFake(t)
	f.tokenStatus = http.StatusBadRequest
	store := storeWith(t, &oauth2.Token{AccessToken: "velho", RefreshToken: "revogado", Expiry: time.Now().Add(-time.Hour)})

	_, err := f.client(store).CreateEvent(context.Background(), "u1", event())
	require.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Equal(t, egress.KindAuthExpired, egress.Classify(err))
	assert.Zero(t, f.eventCalls.Load())
}

func TestCalendar_401EsAuthExpired(t *testing.T) {
	f := newCalendarFake(t)
	f.eventStatus = http.StatusUnauthorized
	c := f.client(storeWith(t, &oauth2.Token{AccessToken: "revogado", Expiry: time.Now().Add(time.Hour)}))

	_, err := c.CreateEvent(context.Background(), "u1", event())
	assert.Equal(t, egress.KindAuthExpired, egress.Classify(err))
}

func TestCalendar_503EsReintentable(t *testing.T) {
	f := newCalendarFake(t)
	f.eventStatus = http.StatusServiceUnavailable
	c := f.client(storeWith(t, &oauth2.Token{AccessToken: "ok", Expiry: time.Now().Add(time.Hour)}))

	_, err := c.CreateEvent(context.Background(), "u1", event())
	assert.Equal(t, egress.KindRetryable, egress.Classify(err))
}

func TestCalendar_ConflictoEsReintentoDeEventoYaCreado(t *testing.T) {
	f := newCalendarFake(t)
	f.eventStatus = http.StatusConflict
	c := f.client(storeWith(t, &oauth2.Token{AccessToken: "ok", Expiry: time.Now().Add(time.Hour)}))

	id, err := c.CreateEvent(context.Background(), "u1", event())
	require.NoError(t, err)
	assert.Equal(t, "7f9c2ba4e88f4c2a9d3b1a2b3c4d5e6f", id)
}

func TestCalendar_SinCuentaConectada(t *testing.T) {
	f := newCalendarFake(t)
	_, err := f.client(storeWith(t, nil)).CreateEvent(context.Background(), "u1", event())
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Zero(t, f.eventCalls.Load())
}

func TestCalendar_EgressGuardBloqueaHostNoPermitido(t *testing.T) {
	f := newCalendarFake(t)
	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: f.srv.URL + "/token"}}
	guarded := agents.NewHTTPClient(agents.CalendarDescriptor(), f.srv.Client().Transport)
	c := google.NewCalendarClient(cfg, storeWith(t, &oauth2.Token{AccessToken: "ok", Expiry: time.Now().Add(time.Hour)}), guarded).
		WithEndpoint(f.srv.URL + "/calendar/v3/")

	_, err := c.CreateEvent(context.Background(), "u1", event())
	assert.ErrorIs(t, err, domain.ErrDomainNotAllowed)
	assert.Zero(t, f.eventCalls.Load())
}

// ── Ads ────────────────────────────────────────────────────────────────────────

func TestAds_AgregaPorCampana(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/1234567890/googleAds:searchStream", r.URL.Path)
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		assert.Equal(t, "dev", r.Header.Get("developer-token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
 {"results":[{"campaign":{"id":"1","name":"A"},"metrics":{"impressions":"100","clicks":"10","conversions":2,"costMicros":"1500000"}}]},
 {"results":[{"campaign":{"id":"1","name":"A"},"metrics":{"impressions":"50","clicks":"5","conversions":1,"costMicros":"500000"}},
             {"campaign":{"id":"2","name":"B"},"metrics":{"impressions":"7","clicks":"0","conversions":0,"costMicros":"0"}}]}
]`))
	}))
	defer srv.Close()

	ads := google.NewAdsClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), "dev", "", srv.Client()).WithBaseURL(srv.URL)
	out, err := ads.CampaignMetrics(context.Background(), "123-456-7890", 7)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(150), out[0].Impressions)
	assert.Equal(t, int64(15), out[0].Clicks)
	assert.Equal(t, "2", out[0].Cost.String())
	assert.Equal(t, "B", out[1].Name)
}

func TestAds_ErroresClasificados(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`[{"error":{"code":1,"message":"x","status":"FAILED"}}]`))
	}))
	defer srv.Close()
	ads := google.NewAdsClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), "dev", "1234567890", srv.Client()).WithBaseURL(srv.URL)

	_, err := ads.CampaignMetrics(context.Background(), "", 7)
	assert.Equal(t, egress.KindAuthExpired, egress.Classify(err))

	status = http.StatusInternalServerError
	_, err = ads.CampaignMetrics(context.Background(), "", 7)
	assert.Equal(t, egress.KindRetryable, egress.Classify(err))

	status = http.StatusBadRequest
	_, err = ads.CampaignMetrics(context.Background(), "", 7)
	require.Error(t, err)
	assert.Equal(t, egress.KindPermanent, egress.Classify(err))
	assert.Contains(t, err.Error(), "FAILED")
}

func TestAds_SinCustomer(t *testing.T) {
	ads := google.NewAdsClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), "dev", "", http.DefaultClient)
	_, err := ads.CampaignMetrics(context.Background(), "", 7)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

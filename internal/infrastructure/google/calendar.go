package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

var _ ports.CalendarClient = (*CalendarClient)(nil)

// CalendarClient crea eventos en la agenda principal del usuario.
// httpClient es el cliente del agente (egress.Guard); también lo usa el refresh del token.
type CalendarClient struct {
	oauth      *oauth2.Config
	tokens     TokenStore
	httpClient *http.Client
	endpoint   string
}

// NewCalendarClient construye el adaptador.
func NewCalendarClient(oauth *oauth2.Config, tokens TokenStore, httpClient *http.Client) *CalendarClient {
	return &CalendarClient{oauth: oauth, tokens: tokens, httpClient: httpClient}
}

// WithEndpoint apunta la API de Calendar a otro host (tests).
func (c *CalendarClient) WithEndpoint(u string) *CalendarClient {
	c.endpoint = u
	return c
}

// CreateEvent implementa ports.CalendarClient. El id del evento se deriva del
// RequestID: un reintento que encuentra el evento ya creado devuelve el mismo id.
func (c *CalendarClient) CreateEvent(ctx context.Context, userID string, ev ports.CalendarEvent) (string, error) {
	tok, err := c.tokens.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("google: leer token: %w", err)
	}
	if tok == nil {
		return "", egress.AuthExpired(errors.New("google: cuenta Workspace no conectada"))
	}

	octx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	ts := c.oauth.TokenSource(octx, tok)
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(octx, ts))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("google: calendar: %w", err)
	}

	event := &calendar.Event{
		Id:          eventID(ev.RequestID),
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	for _, a := range ev.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: a})
	}
	created, err := svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		var ge *googleapi.Error
		if event.Id != "" && errors.As(err, &ge) && ge.Code == http.StatusConflict {
			return event.Id, nil
		}
		return "", fmt.Errorf("google: crear evento: %w", classify(ctx, err))
	}

	// persistir el token renovado, si lo hubo
	if fresh, err := ts.Token(); err == nil && fresh.AccessToken != tok.AccessToken {
		_ = c.tokens.Save(ctx, userID, fresh)
	}
	return created.Id, nil
}

// eventID Calendar acepta ids base32hex (a-v, 0-9) de 5 a 1024 caracteres; un
// UUID sin guiones cumple.
func eventID(requestID string) string {
	id := strings.ToLower(strings.ReplaceAll(requestID, "-", ""))
	if len(id) < 5 {
		return ""
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'v') {
			return ""
		}
	}
	return id
}

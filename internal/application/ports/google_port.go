package ports

import (
	"context"
	"time"

	"github.com/jhoicas/meu-agente-api/internal/application/dto"
)

// CalendarEvent evento a crear.
type CalendarEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	RequestID   string
}

// CalendarClient adaptador de Google Calendar. Un token OAuth vencido o revocado
// debe devolverse como egress.AuthExpired.
type CalendarClient interface {
	CreateEvent(ctx context.Context, userID string, ev CalendarEvent) (eventID string, err error)
}

// AdsClient métricas de campañas (Google Ads API).
type AdsClient interface {
	CampaignMetrics(ctx context.Context, customerID string, days int) ([]dto.CampaignMetricDTO, error)
}

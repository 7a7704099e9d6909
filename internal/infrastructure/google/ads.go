package google

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"

	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

var _ ports.AdsClient = (*AdsClient)(nil)

const adsBaseURL = "https://googleads.googleapis.com/v17"

// AdsClient métricas de campañas vía Google Ads API (REST, searchStream).
type AdsClient struct {
	client            *resty.Client
	tokens            oauth2.TokenSource
	developerToken    string
	defaultCustomerID string
	now               func() time.Time
}

// NewAdsClient construye el cliente. tokens suele ser oauth.TokenSource con el
// refresh token de la cuenta gestora; httpClient es el del agente.
func NewAdsClient(tokens oauth2.TokenSource, developerToken, defaultCustomerID string, httpClient *http.Client) *AdsClient {
	return &AdsClient{
		client:            resty.NewWithClient(httpClient).SetBaseURL(adsBaseURL),
		tokens:            tokens,
		developerToken:    developerToken,
		defaultCustomerID: defaultCustomerID,
		now:               time.Now,
	}
}

// WithBaseURL apunta a otro host (tests).
func (c *AdsClient) WithBaseURL(u string) *AdsClient {
	c.client.SetBaseURL(u)
	return c
}

type adsRow struct {
	Campaign struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"campaign"`
	Metrics struct {
		Impressions string  `json:"impressions"`
		Clicks      string  `json:"clicks"`
		Conversions float64 `json:"conversions"`
		CostMicros  string  `json:"costMicros"`
	} `json:"metrics"`
}

type adsBatch struct {
	Results []adsRow `json:"results"`
}

type adsError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// CampaignMetrics implementa ports.AdsClient. Agrega por campaña los últimos days días.
func (c *AdsClient) CampaignMetrics(ctx context.Context, customerID string, days int) ([]dto.CampaignMetricDTO, error) {
	if customerID == "" {
		customerID = c.defaultCustomerID
	}
	customerID = strings.ReplaceAll(customerID, "-", "")
	if customerID == "" {
		return nil, egress.InvalidPayload("marketing: customer_id no configurado")
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, classify(ctx, err)
	}

	from, to := dateRange(c.now(), days)
	query := fmt.Sprintf(`SELECT campaign.id, campaign.name, metrics.impressions, metrics.clicks, metrics.conversions, metrics.cost_micros
FROM campaign WHERE segments.date BETWEEN '%s' AND '%s' AND campaign.status = 'ENABLED'`, from, to)

	var batches []adsBatch
	var apiErr []adsError
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(tok.AccessToken).
		SetHeader("developer-token", c.developerToken).
		SetPathParam("customer", customerID).
		SetBody(map[string]string{"query": query}).
		SetResult(&batches).
		SetError(&apiErr).
		Post("/customers/{customer}/googleAds:searchStream")
	if err != nil {
		return nil, fmt.Errorf("google ads: %w", classify(ctx, err))
	}
	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized:
		return nil, egress.AuthExpired(fmt.Errorf("google ads: %s", resp.String()))
	case status == http.StatusTooManyRequests || status >= 500:
		return nil, egress.Retryable(fmt.Errorf("google ads: HTTP %d", status))
	case resp.IsError():
		msg := resp.String()
		if len(apiErr) > 0 {
			msg = apiErr[0].Error.Status + ": " + apiErr[0].Error.Message
		}
		return nil, fmt.Errorf("google ads: HTTP %d: %s", status, msg)
	}

	byID := map[string]*dto.CampaignMetricDTO{}
	var order []string
	for _, b := range batches {
		for _, r := range b.Results {
			m, ok := byID[r.Campaign.ID]
			if !ok {
				m = &dto.CampaignMetricDTO{CampaignID: r.Campaign.ID, Name: r.Campaign.Name, Cost: decimal.Zero}
				byID[r.Campaign.ID] = m
				order = append(order, r.Campaign.ID)
			}
			m.Impressions += parseInt(r.Metrics.Impressions)
			m.Clicks += parseInt(r.Metrics.Clicks)
			m.Conversions += r.Metrics.Conversions
			m.Cost = m.Cost.Add(decimal.New(parseInt(r.Metrics.CostMicros), -6))
		}
	}
	out := make([]dto.CampaignMetricDTO, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// dateRange últimos days días cerrados, en formato GAQL.
func dateRange(now time.Time, days int) (string, string) {
	if days < 1 {
		days = 1
	}
	end := now.AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(days - 1))
	return start.Format("2006-01-02"), end.Format("2006-01-02")
}

// Ads serializa int64 como string.
func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

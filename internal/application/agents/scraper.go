package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// IntentScraper extracción de datos de fuentes públicas permitidas.
const IntentScraper = "scraper"

// DefaultScraperSources fuentes abiertas (Banco Central, IBGE).
var DefaultScraperSources = []string{"api.bcb.gov.br", "servicodados.ibge.gov.br"}

const scraperSchema = `{
  "type": "object",
  "required": ["url"],
  "properties": {
    "url":      {"type": "string", "pattern": "^https://"},
    "max_rows": {"type": "integer", "minimum": 1, "maximum": 1000}
  },
  "additionalProperties": false
}`

type scraperPayload struct {
	URL     string `json:"url"`
	MaxRows int    `json:"max_rows"`
}

// ScraperAgent descarga una fuente permitida y devuelve sus filas.
// El cliente HTTP va montado sobre el egress.Guard del agente.
type ScraperAgent struct {
	desc   Descriptor
	client *resty.Client
}

// ScraperDescriptor descriptor con las fuentes permitidas.
func ScraperDescriptor(sources []string) Descriptor {
	return Descriptor{
		ID:                 IntentScraper,
		RequiredCapability: entity.CapAgentScraper,
		AllowedAPIDomains:  append([]string(nil), sources...),
		PayloadSchema:      scraperSchema,
	}
}

// NewScraperAgent construye el agente. transport nil usa la red real.
func NewScraperAgent(sources []string, transport http.RoundTripper) *ScraperAgent {
	d := ScraperDescriptor(sources)
	client := resty.NewWithClient(NewHTTPClient(d, transport)).
		SetHeader("Accept", "application/json, text/plain").
		SetHeader("User-Agent", "meu-agente-scraper/1.0")
	return &ScraperAgent{desc: d, client: client}
}

// Descriptor implementa Agent.
func (a *ScraperAgent) Descriptor() Descriptor { return a.desc }

// Execute implementa Agent.
func (a *ScraperAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	var p scraperPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return nil, egress.InvalidPayload("scraper: %v", err)
	}
	if _, err := url.ParseRequestURI(p.URL); err != nil {
		return nil, egress.InvalidPayload("scraper: url: %v", err)
	}
	if p.MaxRows == 0 {
		p.MaxRows = 100
	}

	resp, err := a.client.R().SetContext(ctx).Get(p.URL)
	if err != nil {
		if errors.Is(err, domain.ErrDomainNotAllowed) {
			return nil, err
		}
		return nil, egress.Retryable(fmt.Errorf("scraper: %w", err))
	}
	switch code := resp.StatusCode(); {
	case code >= 500 || code == http.StatusTooManyRequests:
		return nil, egress.Retryable(fmt.Errorf("scraper: %s respondió %d", p.URL, code))
	case code >= 400:
		return nil, fmt.Errorf("scraper: %s respondió %d", p.URL, code)
	}

	rows := parseRows(resp.Body(), p.MaxRows)
	return JSONResult(fmt.Sprintf("%d linhas extraídas.", len(rows)), map[string]any{
		"source": p.URL,
		"rows":   rows,
	})
}

// parseRows acepta un arreglo JSON o texto plano (una fila por línea).
func parseRows(body []byte, max int) []any {
	trimmed := bytes.TrimSpace(body)
	var rows []any
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err == nil {
			if len(rows) > max {
				rows = rows[:max]
			}
			return rows
		}
	}
	for _, line := range strings.Split(string(trimmed), "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		rows = append(rows, line)
		if len(rows) == max {
			break
		}
	}
	return rows
}

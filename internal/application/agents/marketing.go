package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// IntentMarketing análisis de campañas de Google Ads.
const IntentMarketing = "marketing"

// AlertTemplateID plantilla aprobada para alertas de campaña fuera de la ventana.
const AlertTemplateID = "alerta_campanha"

const marketingSchema = `{
  "type": "object",
  "properties": {
    "customer_id": {"type": "string", "pattern": "^[0-9-]{10,12}$"},
    "days":        {"type": "integer", "minimum": 1, "maximum": 90},
    "alert_phone": {"type": "string", "pattern": "^[0-9]{10,15}$"}
  },
  "additionalProperties": false
}`

type marketingPayload struct {
	CustomerID string `json:"customer_id"`
	Days       int    `json:"days"`
	AlertPhone string `json:"alert_phone"`
}

// MarketingAgent trae métricas, pide el análisis al LLM y alerta si corresponde.
type MarketingAgent struct {
	ads    ports.AdsClient
	llm    ports.LLMService
	sender MessageSender
	idem   ports.IdempotencyStore
}

// NewMarketingAgent construye el agente.
func NewMarketingAgent(ads ports.AdsClient, llm ports.LLMService, sender MessageSender, idem ports.IdempotencyStore) *MarketingAgent {
	return &MarketingAgent{ads: ads, llm: llm, sender: sender, idem: idem}
}

// MarketingDescriptor descriptor del agente de marketing.
func MarketingDescriptor() Descriptor {
	return Descriptor{
		ID:                 IntentMarketing,
		RequiredCapability: entity.CapAgentMarketing,
		AllowedAPIDomains: []string{
			"googleads.googleapis.com",
			"oauth2.googleapis.com",
			"api.anthropic.com",
			"generativelanguage.googleapis.com",
			"graph.facebook.com",
		},
		PayloadSchema: marketingSchema,
	}
}

// Descriptor implementa Agent.
func (a *MarketingAgent) Descriptor() Descriptor { return MarketingDescriptor() }

// Execute implementa Agent.
func (a *MarketingAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	p := marketingPayload{Days: 7}
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, egress.InvalidPayload("marketing: %v", err)
		}
	}
	metrics, err := a.ads.CampaignMetrics(ctx, p.CustomerID, p.Days)
	if err != nil {
		return nil, fmt.Errorf("marketing: métricas: %w", err)
	}
	if len(metrics) == 0 {
		return JSONResult("Nenhuma campanha ativa no período.", map[string]any{"campaigns": 0})
	}
	analysis, err := a.llm.AnalyzeCampaign(ctx, metrics)
	if err != nil {
		return nil, fmt.Errorf("marketing: análisis: %w", err)
	}

	alerted := false
	if analysis.Alert && p.AlertPhone != "" {
		_, err := runOnce(ctx, a.idem, "marketing:"+req.RequestID, func() error {
			_, err := a.sender.Send(ctx, ports.OutboundMessage{
				ContactPhone: p.AlertPhone,
				TemplateID:   AlertTemplateID,
				Params:       []string{analysis.Summary},
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("marketing: alerta: %w", err)
		}
		alerted = true
	}
	return JSONResult(analysis.Summary, map[string]any{
		"campaigns": len(metrics),
		"analysis":  analysis,
		"alerted":   alerted,
	})
}

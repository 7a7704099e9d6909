package dto

import "github.com/shopspring/decimal"

// LeadInput datos que el agente SDR envía al LLM.
type LeadInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// LeadQualificationDTO respuesta del LLM para un lead.
type LeadQualificationDTO struct {
	Score      int    `json:"score"`
	Stage      string `json:"stage"` // cold | warm | hot
	NextAction string `json:"next_action"`
	Reply      string `json:"reply"`
}

// CampaignMetricDTO métricas de una campaña de Google Ads.
type CampaignMetricDTO struct {
	CampaignID  string          `json:"campaign_id"`
	Name        string          `json:"name"`
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Conversions float64         `json:"conversions"`
	Cost        decimal.Decimal `json:"cost"`
}

// CampaignAnalysisDTO resumen del LLM sobre las campañas.
type CampaignAnalysisDTO struct {
	Summary         string   `json:"summary"`
	Alert           bool     `json:"alert"`
	Recommendations []string `json:"recommendations"`
}

package ports

import (
	"context"

	"github.com/jhoicas/meu-agente-api/internal/application/dto"
)

// LLMService define el puerto de salida para los servicios de inteligencia artificial
// que usan los sub-agentes. Cualquier adaptador (Anthropic, mock) debe implementarlo.
// El contexto debe llevar un timeout para evitar bloqueos en llamadas externas.
type LLMService interface {
	// QualifyLead puntúa un lead a partir del mensaje recibido y propone el siguiente paso.
	QualifyLead(ctx context.Context, in dto.LeadInput) (*dto.LeadQualificationDTO, error)
	// AnalyzeCampaign resume métricas de campaña y decide si merecen una alerta.
	AnalyzeCampaign(ctx context.Context, metrics []dto.CampaignMetricDTO) (*dto.CampaignAnalysisDTO, error)
}

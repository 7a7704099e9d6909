package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

// Verificar en tiempo de compilación que AnthropicService implementa LLMService.
var _ ports.LLMService = (*AnthropicService)(nil)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// AnthropicService adaptador de LLMService sobre la Messages API de Anthropic.
// El *http.Client lo entrega el agente (lleva su egress.Guard).
type AnthropicService struct {
	apiKey string
	model  string
	client *resty.Client
}

// NewAnthropicService construye el adaptador. model suele ser "claude-3-5-haiku-20241022".
// Si apiKey está vacío las llamadas devuelven error descriptivo en lugar de panic.
func NewAnthropicService(apiKey, model string, httpClient *http.Client) *AnthropicService {
	return &AnthropicService{
		apiKey: apiKey,
		model:  model,
		client: resty.NewWithClient(httpClient).SetBaseURL(anthropicBaseURL),
	}
}

// WithBaseURL apunta a otro host (tests).
func (s *AnthropicService) WithBaseURL(u string) *AnthropicService {
	s.client.SetBaseURL(u)
	return s
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// QualifyLead implementa ports.LLMService.
func (s *AnthropicService) QualifyLead(ctx context.Context, in dto.LeadInput) (*dto.LeadQualificationDTO, error) {
	text, err := s.complete(ctx, leadSystemPrompt, leadUserContent(in))
	if err != nil {
		return nil, err
	}
	return parseLead(text)
}

// AnalyzeCampaign implementa ports.LLMService.
func (s *AnthropicService) AnalyzeCampaign(ctx context.Context, metrics []dto.CampaignMetricDTO) (*dto.CampaignAnalysisDTO, error) {
	content, err := campaignUserContent(metrics)
	if err != nil {
		return nil, err
	}
	text, err := s.complete(ctx, campaignSystemPrompt, content)
	if err != nil {
		return nil, err
	}
	return parseCampaign(text)
}

func (s *AnthropicService) complete(ctx context.Context, system, user string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("AI: AI_API_KEY no configurado (anthropic)")
	}
	var out anthropicResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", s.apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(anthropicRequest{
			Model:     s.model,
			MaxTokens: 1024,
			System:    system,
			Messages:  []anthropicMessage{{Role: "user", Content: user}},
		}).
		SetResult(&out).
		SetError(&out).
		Post("/v1/messages")
	if err != nil {
		return "", transportError(ctx, "Anthropic", err)
	}
	if resp.IsError() {
		msg := resp.String()
		if out.Error != nil {
			msg = out.Error.Type + ": " + out.Error.Message
		}
		return "", statusError("Anthropic", resp.StatusCode(), msg)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("AI: Claude devolvió respuesta vacía")
	}
	return out.Content[0].Text, nil
}

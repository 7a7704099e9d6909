package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

// Verificar en tiempo de compilación que GeminiService implementa LLMService.
var _ ports.LLMService = (*GeminiService)(nil)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiService adaptador de LLMService sobre la API REST de Google Gemini.
// response_mime_type=application/json obliga al modelo a devolver JSON puro.
type GeminiService struct {
	apiKey string
	model  string
	client *resty.Client
}

// NewGeminiService construye el adaptador. model suele ser "gemini-1.5-flash".
func NewGeminiService(apiKey, model string, httpClient *http.Client) *GeminiService {
	return &GeminiService{
		apiKey: apiKey,
		model:  model,
		client: resty.NewWithClient(httpClient).SetBaseURL(geminiBaseURL),
	}
}

// WithBaseURL apunta a otro host (tests).
func (s *GeminiService) WithBaseURL(u string) *GeminiService {
	s.client.SetBaseURL(u)
	return s
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  genConfig       `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type genConfig struct {
	ResponseMimeType string  `json:"response_mime_type"`
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// QualifyLead implementa ports.LLMService.
func (s *GeminiService) QualifyLead(ctx context.Context, in dto.LeadInput) (*dto.LeadQualificationDTO, error) {
	text, err := s.generate(ctx, leadSystemPrompt, leadUserContent(in))
	if err != nil {
		return nil, err
	}
	return parseLead(text)
}

// AnalyzeCampaign implementa ports.LLMService.
func (s *GeminiService) AnalyzeCampaign(ctx context.Context, metrics []dto.CampaignMetricDTO) (*dto.CampaignAnalysisDTO, error) {
	content, err := campaignUserContent(metrics)
	if err != nil {
		return nil, err
	}
	text, err := s.generate(ctx, campaignSystemPrompt, content)
	if err != nil {
		return nil, err
	}
	return parseCampaign(text)
}

func (s *GeminiService) generate(ctx context.Context, system, user string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("AI: AI_API_KEY no configurado (gemini)")
	}
	var out geminiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("key", s.apiKey).
		SetPathParam("model", s.model).
		SetBody(geminiRequest{
			SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
			Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: user}}}},
			GenerationConfig:  genConfig{ResponseMimeType: "application/json", Temperature: 0.2, MaxOutputTokens: 1024},
		}).
		SetResult(&out).
		SetError(&out).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", transportError(ctx, "Gemini", err)
	}
	if resp.IsError() {
		msg := resp.String()
		if out.Error != nil {
			msg = out.Error.Status + ": " + out.Error.Message
		}
		return "", statusError("Gemini", resp.StatusCode(), msg)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("AI: Gemini devolvió respuesta vacía")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

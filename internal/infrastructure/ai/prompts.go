package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jhoicas/meu-agente-api/internal/application/dto"
)

const (
	leadSystemPrompt = `Você é um SDR de uma pequena empresa brasileira. Classifique o lead a partir da mensagem recebida.
Devolva SOMENTE um objeto JSON válido (sem markdown) com esta estrutura exata:
{
  "score": <inteiro de 0 a 100>,
  "stage": "<cold | warm | hot>",
  "next_action": "<próximo passo comercial, máximo 120 caracteres>",
  "reply": "<resposta cordial em português para enviar ao lead por WhatsApp, máximo 600 caracteres>"
}
Não inclua texto fora do JSON.`

	campaignSystemPrompt = `Você é analista de mídia paga. Receberá métricas de campanhas do Google Ads em JSON.
Devolva SOMENTE um objeto JSON válido (sem markdown) com esta estrutura exata:
{
  "summary": "<resumo em português, máximo 300 caracteres>",
  "alert": <true se alguma campanha gasta sem converter ou teve queda forte de CTR, senão false>,
  "recommendations": ["<recomendação curta>", "..."]
}
Não inclua texto fora do JSON.`
)

// jsonBlockRe extrae el primer objeto JSON del texto aunque el modelo lo envuelva en markdown.
var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON extrae el primer objeto JSON de un texto libre.
//  1. Elimina bloques markdown (```json … ```).
//  2. Regex para capturar el primer { … }.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx != -1 {
		after := text[idx+3:]
		if nl := strings.Index(after, "\n"); nl != -1 {
			after = after[nl+1:]
		}
		if end := strings.LastIndex(after, "```"); end != -1 {
			after = after[:end]
		}
		text = strings.TrimSpace(after)
	}
	if strings.HasPrefix(text, "{") {
		return text
	}
	return strings.TrimSpace(jsonBlockRe.FindString(text))
}

func leadUserContent(in dto.LeadInput) string {
	return fmt.Sprintf("Nome: %s\nTelefone: %s\nOrigem: %s\nMensagem: %s", in.Name, in.Phone, in.Source, in.Message)
}

func campaignUserContent(metrics []dto.CampaignMetricDTO) (string, error) {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return "", fmt.Errorf("AI: serializar métricas: %w", err)
	}
	return string(raw), nil
}

// parseLead normaliza la respuesta: score en [0,100] y stage conocido.
func parseLead(rawText string) (*dto.LeadQualificationDTO, error) {
	clean := extractJSON(rawText)
	if clean == "" {
		return nil, fmt.Errorf("AI: no se encontró JSON en la respuesta del modelo (respuesta: %s)", rawText)
	}
	var out dto.LeadQualificationDTO
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("AI: parsear calificación: %w (JSON extraído: %s)", err, clean)
	}
	if out.Score < 0 {
		out.Score = 0
	} else if out.Score > 100 {
		out.Score = 100
	}
	switch strings.ToLower(strings.TrimSpace(out.Stage)) {
	case "hot":
		out.Stage = "hot"
	case "warm":
		out.Stage = "warm"
	default:
		out.Stage = "cold"
	}
	if strings.TrimSpace(out.Reply) == "" {
		return nil, fmt.Errorf("AI: calificación sin respuesta para el lead")
	}
	return &out, nil
}

func parseCampaign(rawText string) (*dto.CampaignAnalysisDTO, error) {
	clean := extractJSON(rawText)
	if clean == "" {
		return nil, fmt.Errorf("AI: no se encontró JSON en la respuesta del modelo (respuesta: %s)", rawText)
	}
	var out dto.CampaignAnalysisDTO
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("AI: parsear análisis: %w (JSON extraído: %s)", err, clean)
	}
	return &out, nil
}

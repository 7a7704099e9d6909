package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

var _ ports.WhatsAppSender = (*CloudSender)(nil)

// AllowedDomains hosts de la Cloud API.
var AllowedDomains = []string{"graph.facebook.com"}

// DefaultLanguage idioma de las plantillas aprobadas.
const DefaultLanguage = "pt_BR"

// CloudSender transporte de la WhatsApp Cloud API. No decide nada de
// cumplimiento: solo lo invoca compliance.Messenger.
type CloudSender struct {
	client        *resty.Client
	phoneNumberID string
	language      string
}

// NewCloudSender construye el sender. httpClient nil usa un cliente con
// egress.Guard limitado a graph.facebook.com.
func NewCloudSender(apiBase, token, phoneNumberID string, httpClient *http.Client) *CloudSender {
	if httpClient == nil {
		httpClient = &http.Client{Transport: egress.NewGuard("whatsapp", AllowedDomains, nil)}
	}
	return &CloudSender{
		client:        resty.NewWithClient(httpClient).SetBaseURL(apiBase).SetAuthToken(token),
		phoneNumberID: phoneNumberID,
		language:      DefaultLanguage,
	}
}

type textBody struct {
	Body string `json:"body"`
}

type templateParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string          `json:"type"`
	Parameters []templateParam `json:"parameters"`
}

type templateBody struct {
	Name       string              `json:"name"`
	Language   map[string]string   `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type sendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send implementa ports.WhatsAppSender.
func (s *CloudSender) Send(ctx context.Context, msg ports.OutboundMessage) (string, error) {
	body := sendRequest{MessagingProduct: "whatsapp", To: msg.ContactPhone}
	if msg.TemplateID != "" {
		tpl := &templateBody{Name: msg.TemplateID, Language: map[string]string{"code": s.language}}
		if len(msg.Params) > 0 {
			c := templateComponent{Type: "body"}
			for _, p := range msg.Params {
				c.Parameters = append(c.Parameters, templateParam{Type: "text", Text: p})
			}
			tpl.Components = []templateComponent{c}
		}
		body.Type = "template"
		body.Template = tpl
	} else {
		body.Type = "text"
		body.Text = &textBody{Body: msg.Body}
	}

	var out sendResponse
	var apiErr apiError
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("phone", s.phoneNumberID).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/{phone}/messages")
	if err != nil {
		if errors.Is(err, domain.ErrDomainNotAllowed) || ctx.Err() != nil {
			return "", fmt.Errorf("whatsapp: %w", err)
		}
		return "", egress.Retryable(fmt.Errorf("whatsapp: %w", err))
	}
	if resp.IsError() {
		err := fmt.Errorf("whatsapp: HTTP %d: %s (code %d)", resp.StatusCode(), apiErr.Error.Message, apiErr.Error.Code)
		switch status := resp.StatusCode(); {
		case status == http.StatusUnauthorized:
			return "", egress.AuthExpired(err)
		case status == http.StatusTooManyRequests || status >= 500:
			return "", egress.Retryable(err)
		default:
			return "", err
		}
	}
	if len(out.Messages) == 0 {
		return "", errors.New("whatsapp: respuesta sin id de mensaje")
	}
	return out.Messages[0].ID, nil
}

package router

import (
	"encoding/json"
	"errors"

	"github.com/jhoicas/meu-agente-api/internal/application/egress"
	"github.com/jhoicas/meu-agente-api/internal/application/entitlement"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// Action lo que la interfaz debe ofrecer al usuario tras el comando.
type Action string

const (
	ActionNone           Action = "none"
	ActionUpgrade        Action = "upgrade"
	ActionReauthenticate Action = "reauthenticate"
	ActionRetry          Action = "retry"
)

// Result salida de una pasada del router. Nunca lleva un error crudo al usuario:
// UserMessage es el texto a mostrar y Err queda para el llamador (errors.Is).
type Result struct {
	CommandID    string              `json:"command_id"`
	Intent       string              `json:"intent"`
	State        entity.CommandState `json:"state"`
	Outcome      entity.AuditOutcome `json:"outcome"`
	Code         string              `json:"code,omitempty"`
	UserMessage  string              `json:"message"`
	Action       Action              `json:"action"`
	RequiredTier entity.PlanTier     `json:"required_tier,omitempty"`
	Attempts     int                 `json:"attempts"`
	Data         json.RawMessage     `json:"data,omitempty"`
	Err          error               `json:"-"`
}

// Códigos estables para la API.
const (
	CodeEntitlementDenied      = "ENTITLEMENT_DENIED"
	CodeUnknownIntent          = "UNKNOWN_INTENT"
	CodeComplianceWindowClosed = "COMPLIANCE_WINDOW_CLOSED"
	CodeTemplateNotApproved    = "TEMPLATE_NOT_APPROVED"
	CodeSubAgentUnavailable    = "SUB_AGENT_UNAVAILABLE"
	CodeAuthExpired            = "AUTH_EXPIRED"
	CodeDomainNotAllowed       = "DOMAIN_NOT_ALLOWED"
	CodeInvalidPayload         = "INVALID_PAYLOAD"
	CodeRestoreInProgress      = "RESTORE_IN_PROGRESS"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeInternal               = "INTERNAL"
)

// Mensajes al usuario (portugués).
const (
	msgUnknownIntent     = "Não entendi o que você quer fazer. Tente reformular o pedido."
	msgWindowClosed      = "A janela de 24 horas de conversa com este contato está fechada. Só é possível enviar um modelo de mensagem aprovado."
	msgTemplateRejected  = "O modelo de mensagem escolhido não está aprovado pelo WhatsApp."
	msgAuthExpired       = "Sua conexão com o Google expirou. Reconecte sua conta para continuar."
	msgUnavailable       = "A tarefa falhou. Tente novamente em alguns instantes."
	msgDomainNotAllowed  = "A fonte solicitada não está entre as fontes permitidas."
	msgInvalidPayload    = "Os dados enviados para este comando são inválidos."
	msgRestoreInProgress = "Uma restauração de backup está em andamento. Tente novamente em instantes."
	msgUserNotFound      = "Usuário não encontrado."
	msgInternal          = "Não foi possível concluir a tarefa."
)

// failure traduce un error terminal a estado, outcome, código, mensaje y acción.
func failure(res *Result, err error) {
	res.Err = err
	res.State = entity.CommandFailed
	res.Outcome = entity.OutcomeError
	res.Action = ActionNone

	if d, ok := entitlement.AsDenied(err); ok {
		res.State = entity.CommandDenied
		res.Outcome = entity.OutcomeDenied
		res.Code = CodeEntitlementDenied
		res.UserMessage = d.UpgradeMessage()
		res.Action = ActionUpgrade
		res.RequiredTier = d.RequiredTier
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownIntent):
		res.Code, res.UserMessage = CodeUnknownIntent, msgUnknownIntent
	case errors.Is(err, domain.ErrUserNotFound):
		res.Code, res.UserMessage = CodeUserNotFound, msgUserNotFound
	case errors.Is(err, domain.ErrTemplateNotApproved):
		res.State, res.Outcome = entity.CommandDenied, entity.OutcomeDenied
		res.Code, res.UserMessage = CodeTemplateNotApproved, msgTemplateRejected
	case errors.Is(err, domain.ErrComplianceWindowClosed):
		res.State, res.Outcome = entity.CommandDenied, entity.OutcomeDenied
		res.Code, res.UserMessage = CodeComplianceWindowClosed, msgWindowClosed
	case errors.Is(err, domain.ErrRestoreInProgress):
		res.Code, res.UserMessage, res.Action = CodeRestoreInProgress, msgRestoreInProgress, ActionRetry
	case errors.Is(err, domain.ErrDomainNotAllowed):
		res.Code, res.UserMessage = CodeDomainNotAllowed, msgDomainNotAllowed
	case errors.Is(err, domain.ErrInvalidPayload):
		res.Code, res.UserMessage = CodeInvalidPayload, msgInvalidPayload
	case egress.Classify(err) == egress.KindAuthExpired:
		res.Code, res.UserMessage, res.Action = CodeAuthExpired, msgAuthExpired, ActionReauthenticate
	case errors.Is(err, domain.ErrSubAgentUnavailable):
		res.Code, res.UserMessage, res.Action = CodeSubAgentUnavailable, msgUnavailable, ActionRetry
	default:
		res.Code, res.UserMessage = CodeInternal, msgInternal
	}
}

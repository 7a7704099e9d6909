package entitlement

import (
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

// Textos de cara al usuario (portugués, igual que el producto).

// UpgradeMessage mensaje de upgrade que nombra el plan mínimo que concede la capacidad.
func UpgradeMessage(capability entity.Capability, required entity.PlanTier) string {
	if !required.Valid() {
		return fmt.Sprintf("A funcionalidade %s não está disponível no momento.", featureName(capability))
	}
	if capability == entity.CapWhatsAppChannel {
		return "A integração WhatsApp está disponível apenas nos planos Business e Premium. Faça upgrade para acessar este recurso."
	}
	return fmt.Sprintf("Esta funcionalidade (%s) está disponível a partir do plano %s. Faça upgrade para o plano %s para acessar este recurso.",
		featureName(capability), required.DisplayName(), required.DisplayName())
}

// InactiveMessage cuenta desactivada.
const InactiveMessage = "Sua conta está inativa. Entre em contato com o suporte para reativar."

// SubscriptionMessage suscripción vencida o cancelada.
const SubscriptionMessage = "Sua assinatura não está ativa. Regularize o pagamento para voltar a usar os recursos do seu plano."

// DenialMessage elige el texto según el estado de la cuenta.
func DenialMessage(u *entity.User, d *DeniedError) string {
	switch {
	case u != nil && !u.IsActive:
		return InactiveMessage
	case u != nil && !u.SubscriptionActive:
		return SubscriptionMessage
	default:
		return d.UpgradeMessage()
	}
}

var featureNames = map[entity.Capability]string{
	entity.CapFinanceEntry:    "Registro financeiro",
	entity.CapExportCSV:       "Exportação CSV",
	entity.CapExportPDF:       "Exportação PDF",
	entity.CapSupportEmail:    "Suporte por e-mail",
	entity.CapBackupAutomatic: "Backup automático",
	entity.CapWhatsAppChannel: "WhatsApp",
	entity.CapAgentSDR:        "Agente SDR",
	entity.CapAgentMarketing:  "Agente de Marketing",
	entity.CapWorkspaceGoogle: "Google Workspace",
	entity.CapSupportPriority: "Suporte prioritário",
	entity.CapAgentScraper:    "Agente Scraper",
	entity.CapWebSearch:       "Pesquisa web",
	entity.CapBackupManual:    "Backup manual",
}

func featureName(c entity.Capability) string {
	if n, ok := featureNames[c]; ok {
		return n
	}
	return string(c)
}

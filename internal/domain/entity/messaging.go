package entity

import "time"

// MessagingWindow duración de la ventana de atención de WhatsApp tras un mensaje entrante.
const MessagingWindow = 24 * time.Hour

// MessagingSession ventana de conversación por contacto. Una por contacto; cada
// mensaje entrante la sobrescribe.
type MessagingSession struct {
	ContactPhone   string
	WindowOpenedAt time.Time
}

// ExpiresAt fin de la ventana.
func (s MessagingSession) ExpiresAt() time.Time {
	return s.WindowOpenedAt.Add(MessagingWindow)
}

// OpenAt informa si la ventana sigue abierta en el instante dado (límite inclusivo).
func (s MessagingSession) OpenAt(now time.Time) bool {
	return !now.After(s.ExpiresAt())
}

// Template plantilla de WhatsApp (HSM). Solo las aprobadas pueden enviarse fuera de la ventana.
type Template struct {
	ID       string
	Name     string
	Approved bool
	BodyHash string
}

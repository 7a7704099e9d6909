package entity

import "time"

// Roles válidos para User.
const (
	RoleCliente = "cliente"
	RoleAdmin   = "admin"
)

// User representa un cliente del asistente. El teléfono es la clave única de login.
// Cada usuario es su propio tenant: sus registros financieros y backups le pertenecen.
type User struct {
	ID                 string
	Phone              string // solo dígitos, 10-15
	Name               string
	Email              string
	PasswordHash       string // bcrypt
	PlanTier           PlanTier
	SubscriptionActive bool
	IsActive           bool
	Role               string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Entitled informa si la cuenta puede usar las capacidades de su plan.
// Una cuenta inactiva o sin suscripción activa no tiene capacidades.
func (u *User) Entitled() bool {
	return u != nil && u.IsActive && u.SubscriptionActive && u.PlanTier.Valid()
}

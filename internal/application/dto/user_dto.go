package dto

import "time"

// SignupRequest entrada para registro: teléfono (solo dígitos) y password.
type SignupRequest struct {
	Phone    string `json:"phone" validate:"required,numeric,min=10,max=15"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"omitempty,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// UserResponse salida de un usuario (sin password).
type UserResponse struct {
	ID                 string    `json:"id"`
	Phone              string    `json:"phone"`
	Name               string    `json:"name"`
	Email              string    `json:"email,omitempty"`
	PlanTier           string    `json:"plan_tier"`
	SubscriptionActive bool      `json:"subscription_active"`
	IsActive           bool      `json:"is_active"`
	Role               string    `json:"role"`
	CreatedAt          time.Time `json:"created_at"`
}

// LoginRequest entrada para login por teléfono.
type LoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse salida con token JWT.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// ChangePlanRequest evento de facturación (ruta de administración).
type ChangePlanRequest struct {
	PlanTier           string `json:"plan_tier" validate:"required,oneof=basic business premium"`
	SubscriptionActive *bool  `json:"subscription_active,omitempty"`
}

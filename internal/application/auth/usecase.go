package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/meu-agente-api/internal/application/audit"
	"github.com/jhoicas/meu-agente-api/internal/application/dto"
	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
	"github.com/jhoicas/meu-agente-api/internal/domain/repository"
	"github.com/jhoicas/meu-agente-api/pkg/jwt"
)

const minPasswordLen = 8

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase casos de uso de autenticación: registro, login y cambio de plan.
type AuthUseCase struct {
	userRepo repository.UserRepository
	locks    ports.UserLocks
	audit    *audit.Service
	jwtCfg   JWTConfig
	cost     int
}

// NewAuthUseCase construye el caso de uso de auth.
// locks es el mismo lock por usuario que usan el router y la restauración.
func NewAuthUseCase(userRepo repository.UserRepository, locks ports.UserLocks, auditSvc *audit.Service, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{userRepo: userRepo, locks: locks, audit: auditSvc, jwtCfg: jwtCfg, cost: bcrypt.DefaultCost}
}

// WithBcryptCost ajusta el costo de bcrypt (tests).
func (uc *AuthUseCase) WithBcryptCost(cost int) *AuthUseCase {
	uc.cost = cost
	return uc
}

// NormalizePhone deja solo dígitos y exige entre 10 y 15.
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("%w: el teléfono debe tener entre 10 y 15 dígitos", domain.ErrInvalidInput)
	}
	return digits, nil
}

// Signup crea un usuario en plan Basic con suscripción activa.
// Devuelve ErrPhoneAlreadyExists si el teléfono ya está registrado.
func (uc *AuthUseCase) Signup(ctx context.Context, in dto.SignupRequest) (*dto.UserResponse, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: la contraseña debe tener al menos %d caracteres", domain.ErrInvalidInput, minPasswordLen)
	}
	existing, err := uc.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrPhoneAlreadyExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), uc.cost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = phone
	}
	user := &entity.User{
		ID:                 uuid.New().String(),
		Phone:              phone,
		Name:               name,
		Email:              strings.TrimSpace(in.Email),
		PasswordHash:       string(hash),
		PlanTier:           entity.PlanBasic,
		SubscriptionActive: true,
		IsActive:           true,
		Role:               entity.RoleCliente,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return ToUserResponse(user), nil
}

// Login verifica teléfono/password, genera JWT y retorna token + usuario.
// Teléfono desconocido y password incorrecto devuelven el mismo error.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	user, err := uc.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	if !user.IsActive {
		return nil, domain.ErrForbidden
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID, user.Phone, user.Role, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token: token,
		User:  *ToUserResponse(user),
	}, nil
}

// Me usuario por ID.
func (uc *AuthUseCase) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	u, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return ToUserResponse(u), nil
}

// ChangePlan evento de facturación. Tiene efecto en la siguiente resolución de capacidades.
// Durante una restauración del usuario devuelve ErrRestoreInProgress.
func (uc *AuthUseCase) ChangePlan(ctx context.Context, actorID, userID string, in dto.ChangePlanRequest) (*dto.UserResponse, error) {
	tier, err := entity.ParsePlanTier(in.PlanTier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	release, err := uc.locks.Shared(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()
	u, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	active := u.SubscriptionActive
	if in.SubscriptionActive != nil {
		active = *in.SubscriptionActive
	}
	if err := uc.userRepo.UpdatePlan(ctx, userID, tier, active); err != nil {
		return nil, err
	}
	if err := uc.audit.Record(ctx, actorID, entity.ActionPlanChanged, userID, entity.OutcomeAllowed, "", map[string]string{
		"from":                string(u.PlanTier),
		"to":                  string(tier),
		"subscription_active": fmt.Sprint(active),
	}); err != nil {
		return nil, err
	}
	u.PlanTier, u.SubscriptionActive = tier, active
	return ToUserResponse(u), nil
}

// ToUserResponse mapea la entidad al DTO público.
func ToUserResponse(u *entity.User) *dto.UserResponse {
	if u == nil {
		return nil
	}
	return &dto.UserResponse{
		ID:                 u.ID,
		Phone:              u.Phone,
		Name:               u.Name,
		Email:              u.Email,
		PlanTier:           string(u.PlanTier),
		SubscriptionActive: u.SubscriptionActive,
		IsActive:           u.IsActive,
		Role:               u.Role,
		CreatedAt:          u.CreatedAt,
	}
}

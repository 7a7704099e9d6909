package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrPhoneAlreadyExists = errors.New("el teléfono ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")
)

// Taxonomía del router de comandos y del guardián de mensajería.
var (
	// ErrEntitlementDenied no es un fallo: es el resultado esperado cuando el plan no cubre la capacidad.
	ErrEntitlementDenied      = errors.New("capacidad no incluida en el plan")
	ErrUnknownIntent          = errors.New("intent sin sub-agente registrado")
	ErrComplianceWindowClosed = errors.New("ventana de 24h cerrada y sin plantilla aprobada")
	ErrTemplateNotApproved    = errors.New("plantilla de WhatsApp no aprobada")
	ErrSubAgentUnavailable    = errors.New("sub-agente no disponible")
	ErrAuthExpired            = errors.New("token OAuth expirado")
	ErrDomainNotAllowed       = errors.New("dominio fuera de la lista permitida")
	ErrInvalidPayload         = errors.New("payload inválido para el sub-agente")
)

// Errores del orquestador de backups.
var (
	ErrBackupIntegrity     = errors.New("fallo de integridad del backup")
	ErrBackupNotFound      = errors.New("backup no encontrado")
	ErrBackupNotRestorable = errors.New("backup no restaurable")
	ErrBackupImmutable     = errors.New("un backup completado no puede modificarse")
	ErrRestoreInProgress   = errors.New("restauración en curso para el usuario")
	ErrCatalogInvalid      = errors.New("matriz de planes inválida")
	ErrBlobExists          = errors.New("el artefacto ya existe en el almacenamiento")
	ErrBlobNotFound        = errors.New("artefacto no encontrado en el almacenamiento")
)

package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Backup    BackupConfig
	Router    RouterConfig
	Messaging MessagingConfig
	WhatsApp  WhatsAppConfig
	Google    GoogleConfig
	AI        AIConfig
	Scraper   ScraperConfig
	RateLimit RateLimitConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
	// DataDriver "postgres" (default) o "memory" (demo local sin dependencias).
	DataDriver string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo (ej. DATABASE_URL de Supabase).
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
	MaxConns    int
	// ForceIPv4 marca el dial a la IPv4 del host (contenedores sin IPv6).
	ForceIPv4        bool
	StatementTimeout time.Duration
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig sesiones de mensajería, locks de restauración e idempotencia.
// Con URL vacío se usan los adaptadores en memoria (un solo proceso).
type RedisConfig struct {
	URL string
}

// StorageConfig almacenamiento off-site de backups.
type StorageConfig struct {
	Driver   string // memory | s3 | gcs
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // MinIO / LocalStack
}

// BackupConfig orquestador y scheduler de backups.
type BackupConfig struct {
	EncryptionKey string // 32 bytes en base64
	Schedule      string // cron, default 02:00
	Timezone      string
	Concurrency   int
}

// RouterConfig límites del router de comandos.
type RouterConfig struct {
	DispatchTimeout time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
}

// MessagingConfig fan-out de auditoría (opcional).
type MessagingConfig struct {
	NATSURL      string
	NATSSubject  string
	KafkaBrokers []string
	KafkaTopic   string
}

// WhatsAppConfig Cloud API.
type WhatsAppConfig struct {
	Token         string
	PhoneNumberID string
	APIBase       string
	WebhookSecret string // X-Webhook-Secret del gateway; vacío desactiva la verificación
}

// GoogleConfig OAuth para Workspace y Ads.
type GoogleConfig struct {
	ClientID        string
	ClientSecret    string
	AdsDevToken     string
	AdsCustomerID   string
	AdsRefreshToken string
}

// AIConfig proveedor LLM de los sub-agentes.
type AIConfig struct {
	Provider string // anthropic | gemini
	APIKey   string
	Model    string
}

// ScraperConfig hosts que el agente scraper puede descargar.
type ScraperConfig struct {
	Sources []string
}

// RateLimitConfig límite por IP en /api.
type RateLimitConfig struct {
	RPS   int
	Burst int
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, JWT_SECRET, REDIS_URL, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:        getString(v, "APP_ENV", "development"),
			Name:       getString(v, "APP_NAME", "meu-agente"),
			LogLevel:   getString(v, "LOG_LEVEL", "info"),
			DataDriver: getString(v, "DATA_DRIVER", "postgres"),
		},
		DB: DBConfig{
			DatabaseURL:      getString(v, "DATABASE_URL", ""),
			Host:             getString(v, "DB_HOST", "localhost"),
			Port:             getInt(v, "DB_PORT", 5432),
			User:             getString(v, "DB_USER", "postgres"),
			Password:         getString(v, "DB_PASSWORD", ""),
			DBName:           getString(v, "DB_NAME", "meu_agente"),
			SSLMode:          getString(v, "DB_SSLMODE", "disable"),
			AutoMigrate:      getBool(v, "DB_AUTO_MIGRATE", true),
			MaxConns:         getInt(v, "DB_MAX_CONNS", 25),
			ForceIPv4:        getBool(v, "DB_FORCE_IPV4", false),
			StatementTimeout: getDuration(v, "DB_STATEMENT_TIMEOUT", 15*time.Second),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "meu-agente"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Redis: RedisConfig{
			URL: getString(v, "REDIS_URL", ""),
		},
		Storage: StorageConfig{
			Driver:   getString(v, "BACKUP_STORAGE_DRIVER", "memory"),
			Bucket:   getString(v, "BACKUP_BUCKET", ""),
			Prefix:   getString(v, "BACKUP_PREFIX", "backups/"),
			Region:   getString(v, "BACKUP_REGION", "sa-east-1"),
			Endpoint: getString(v, "BACKUP_ENDPOINT", ""),
		},
		Backup: BackupConfig{
			EncryptionKey: getString(v, "BACKUP_ENCRYPTION_KEY", ""),
			Schedule:      getString(v, "BACKUP_SCHEDULE", "0 2 * * *"),
			Timezone:      getString(v, "BACKUP_TIMEZONE", "America/Sao_Paulo"),
			Concurrency:   getInt(v, "BACKUP_CONCURRENCY", 4),
		},
		Router: RouterConfig{
			DispatchTimeout: getDuration(v, "ROUTER_DISPATCH_TIMEOUT", 30*time.Second),
			MaxRetries:      getInt(v, "ROUTER_MAX_RETRIES", 3),
			BackoffBase:     getDuration(v, "ROUTER_BACKOFF_BASE", time.Second),
			BackoffMax:      getDuration(v, "ROUTER_BACKOFF_MAX", 8*time.Second),
		},
		Messaging: MessagingConfig{
			NATSURL:      getString(v, "NATS_URL", ""),
			NATSSubject:  getString(v, "NATS_AUDIT_SUBJECT", "meuagente.audit"),
			KafkaBrokers: splitList(getString(v, "KAFKA_BROKERS", "")),
			KafkaTopic:   getString(v, "KAFKA_AUDIT_TOPIC", "meuagente.audit"),
		},
		WhatsApp: WhatsAppConfig{
			Token:         getString(v, "WHATSAPP_TOKEN", ""),
			PhoneNumberID: getString(v, "WHATSAPP_PHONE_NUMBER_ID", ""),
			APIBase:       getString(v, "WHATSAPP_API_BASE", "https://graph.facebook.com/v20.0"),
			WebhookSecret: getString(v, "WHATSAPP_WEBHOOK_SECRET", ""),
		},
		Google: GoogleConfig{
			ClientID:        getString(v, "GOOGLE_CLIENT_ID", ""),
			ClientSecret:    getString(v, "GOOGLE_CLIENT_SECRET", ""),
			AdsDevToken:     getString(v, "GOOGLE_ADS_DEVELOPER_TOKEN", ""),
			AdsCustomerID:   getString(v, "GOOGLE_ADS_CUSTOMER_ID", ""),
			AdsRefreshToken: getString(v, "GOOGLE_ADS_REFRESH_TOKEN", ""),
		},
		AI: AIConfig{
			Provider: getString(v, "AI_PROVIDER", "anthropic"),
			APIKey:   getString(v, "AI_API_KEY", ""),
			Model:    getString(v, "AI_MODEL", "claude-3-5-haiku-20241022"),
		},
		Scraper: ScraperConfig{
			Sources: splitList(getString(v, "SCRAPER_SOURCES", "api.bcb.gov.br,servicodados.ibge.gov.br")),
		},
		RateLimit: RateLimitConfig{
			RPS:   getInt(v, "RATE_LIMIT_RPS", 20),
			Burst: getInt(v, "RATE_LIMIT_BURST", 40),
		},
	}

	if cfg.JWT.Secret == "" && cfg.App.Env == "production" {
		return nil, fmt.Errorf("JWT_SECRET es obligatorio en producción")
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if v.IsSet(key) {
		if d := v.GetDuration(key); d > 0 {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

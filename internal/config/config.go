package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	RedisURL        string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
	JWTSecret       string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	Storage         StorageConfig
	Realtime        RealtimeConfig
	Manutencao      ManutencaoConfig
	UploadMaxBytes  int64
	CatalogCacheTTL time.Duration
	Timezone        string
	MigrateOnStart  bool
	DevCookies      bool
	WebAuthn        WebAuthnConfig
}

// WebAuthnConfig identifica o relying party das passkeys. RPID vazio desliga.
type WebAuthnConfig struct {
	RPID      string
	RPName    string
	RPOrigins []string
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// StorageConfig escolhe o backend de arquivos (noop, local ou s3/r2).
type StorageConfig struct {
	Provider    string
	LocalPath   string
	PublicURL   string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

// RealtimeConfig define o espelhamento de eventos de mudança.
type RealtimeConfig struct {
	Channel      string
	KafkaBrokers []string
	KafkaTopic   string
}

// ManutencaoConfig controla o job periódico de limpeza.
type ManutencaoConfig struct {
	Enabled              bool
	Interval             time.Duration
	NotificacoesRetencao time.Duration
	AlertWebhookURL      string
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.AllowOrigins = splitList(getEnv("ALLOW_ORIGINS", ""))

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 20, Burst: 60}
	if rps, err := parseFloatEnv("RATE_LIMIT_PUBLIC_RPS", cfg.RateLimitPublic.RequestsPerSecond); err != nil {
		return nil, err
	} else {
		cfg.RateLimitPublic.RequestsPerSecond = rps
	}
	if rps, err := parseFloatEnv("RATE_LIMIT_AUTH_RPS", cfg.RateLimitAuth.RequestsPerSecond); err != nil {
		return nil, err
	} else {
		cfg.RateLimitAuth.RequestsPerSecond = rps
	}

	cfg.Storage = StorageConfig{
		Provider:    strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "local"))),
		LocalPath:   strings.TrimSpace(getEnv("STORAGE_LOCAL_PATH", "./data/arquivos")),
		PublicURL:   strings.TrimSpace(getEnv("STORAGE_PUBLIC_URL", "/arquivos")),
		S3Endpoint:  strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		S3Region:    strings.TrimSpace(getEnv("S3_REGION", "auto")),
		S3Bucket:    strings.TrimSpace(getEnv("S3_BUCKET", "")),
		S3AccessKey: strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		S3SecretKey: strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		S3PublicURL: strings.TrimSpace(getEnv("S3_PUBLIC_URL", "")),
	}

	maxBytes, err := strconv.ParseInt(getEnv("UPLOAD_MAX_BYTES", "10485760"), 10, 64)
	if err != nil || maxBytes <= 0 {
		return nil, errors.New("UPLOAD_MAX_BYTES inválido")
	}
	cfg.UploadMaxBytes = maxBytes

	cfg.Realtime = RealtimeConfig{
		Channel:      strings.TrimSpace(getEnv("REALTIME_CHANNEL", "nova:mudancas")),
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   strings.TrimSpace(getEnv("KAFKA_TOPIC", "nova.mudancas")),
	}
	if cfg.Realtime.Channel == "" {
		return nil, errors.New("REALTIME_CHANNEL inválido")
	}

	if cfg.CatalogCacheTTL, err = parseDurationEnv("CATALOG_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.Timezone = strings.TrimSpace(getEnv("TIMEZONE", "America/Sao_Paulo"))
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, errors.New("TIMEZONE inválido")
	}

	cfg.MigrateOnStart = parseBoolEnv("MIGRATE_ON_START", false)
	cfg.DevCookies = parseBoolEnv("DEV_COOKIES", false)

	cfg.WebAuthn = WebAuthnConfig{
		RPID:      strings.TrimSpace(getEnv("WEBAUTHN_RP_ID", "localhost")),
		RPName:    strings.TrimSpace(getEnv("WEBAUTHN_RP_NAME", "NOVA")),
		RPOrigins: splitList(getEnv("WEBAUTHN_RP_ORIGINS", "http://localhost:5173")),
	}
	if cfg.WebAuthn.RPID != "" && len(cfg.WebAuthn.RPOrigins) == 0 {
		return nil, errors.New("WEBAUTHN_RP_ORIGINS obrigatório quando WEBAUTHN_RP_ID está definido")
	}

	cfg.Manutencao = ManutencaoConfig{
		Enabled:         parseBoolEnv("MANUTENCAO_ENABLED", true),
		AlertWebhookURL: strings.TrimSpace(getEnv("ALERT_WEBHOOK_URL", "")),
	}
	if cfg.Manutencao.Interval, err = parseDurationEnv("MANUTENCAO_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Manutencao.NotificacoesRetencao, err = parseDurationEnv("NOTIFICACOES_RETENCAO", 90*24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return 0, errors.New(key + " inválido")
	}
	return f, nil
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

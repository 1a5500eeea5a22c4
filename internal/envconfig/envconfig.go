// Package envconfig loads the server configuration from .env files and the
// process environment.
package envconfig

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ledgerAuth "github.com/MrEthical07/ledgerAuth"
	"github.com/MrEthical07/ledgerAuth/mail"
)

// Backends.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	MailerLog   = "log"
	MailerKafka = "kafka"

	SealerNone = "none"
	SealerAES  = "aes"
	SealerKMS  = "kms"
)

// ServerConfig is everything cmd/ledgerauth-server needs to start.
type ServerConfig struct {
	Env       string
	LogLevel  string
	LogFormat string

	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	MailerBackend string
	KafkaBrokers  []string
	KafkaTopic    string

	SealerBackend string
	SealKey       []byte
	KMSKeyID      string
	AWSRegion     string

	Engine ledgerAuth.Config
}

// IsProduction reports whether APP_ENV is production.
func (c ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// Load reads files (".env" when none are given) and then the environment.
// Missing files are skipped. Variables already present in the environment
// win over file values.
func Load(files ...string) (ServerConfig, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ServerConfig{}, fmt.Errorf("envconfig: load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a ServerConfig from lookup.
func FromEnv(lookup func(string) (string, bool)) (ServerConfig, error) {
	r := &reader{lookup: lookup}

	cfg := ServerConfig{
		Env:       r.str("APP_ENV", "development"),
		LogLevel:  r.str("LOG_LEVEL", "info"),
		LogFormat: r.str("LOG_FORMAT", ""),

		HTTPAddr:        r.str("HTTP_ADDR", ":8080"),
		ReadTimeout:     r.duration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    r.duration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     r.duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		RequestTimeout:  r.duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:  r.list("CORS_ALLOWED_ORIGINS"),

		StoreBackend:  strings.ToLower(r.str("STORE_BACKEND", StoreRedis)),
		RedisAddr:     r.str("REDIS_ADDR", ""),
		RedisPassword: r.str("REDIS_PASSWORD", ""),
		RedisDB:       r.integer("REDIS_DB", 0),
		DatabaseURL:   r.str("DATABASE_URL", ""),

		MailerBackend: strings.ToLower(r.str("MAILER", MailerLog)),
		KafkaBrokers:  r.list("KAFKA_BROKERS"),
		KafkaTopic:    r.str("KAFKA_TOPIC", mail.DefaultTopic),

		SealerBackend: strings.ToLower(r.str("SEALER", SealerNone)),
		SealKey:       r.key("SEAL_KEY"),
		KMSKeyID:      r.str("KMS_KEY_ID", ""),
		AWSRegion:     r.str("AWS_REGION", ""),
	}
	cfg.Engine = engineConfig(r)

	if r.err != nil {
		return ServerConfig{}, r.err
	}
	if err := cfg.validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func engineConfig(r *reader) ledgerAuth.Config {
	cfg := ledgerAuth.DefaultConfig()

	cfg.JWT.SigningKey = []byte(r.str("JWT_SIGNING_KEY", ""))
	cfg.JWT.TTL = r.duration("JWT_TTL", cfg.JWT.TTL)
	cfg.JWT.Issuer = r.str("JWT_ISSUER", "ledgerauth")
	cfg.JWT.Audience = r.str("JWT_AUDIENCE", "")

	cfg.TOTP.Issuer = r.str("TOTP_ISSUER", cfg.TOTP.Issuer)
	cfg.TOTP.SendCodeOnLogin = r.boolean("TOTP_SEND_CODE_ON_LOGIN", false)
	cfg.TOTP.IncludeQRCode = r.boolean("TOTP_INCLUDE_QR_CODE", true)

	cfg.Security.RedisPrefix = r.str("REDIS_PREFIX", cfg.Security.RedisPrefix)
	cfg.Security.RequireLoginChallenge = r.boolean("REQUIRE_LOGIN_CHALLENGE", false)
	cfg.Security.EnableVerificationLimiter = r.boolean("ENABLE_VERIFICATION_LIMITER", false)
	cfg.Security.MaxVerificationAttempts = r.integer("MAX_VERIFICATION_ATTEMPTS", cfg.Security.MaxVerificationAttempts)
	cfg.Security.EnableLoginLimiter = r.boolean("ENABLE_LOGIN_LIMITER", false)
	cfg.Security.MaxLoginAttempts = r.integer("MAX_LOGIN_ATTEMPTS", cfg.Security.MaxLoginAttempts)
	cfg.Security.EnableTokenDenyList = r.boolean("ENABLE_TOKEN_DENY_LIST", false)

	cfg.Audit.Enabled = r.boolean("AUDIT_ENABLED", true)
	cfg.Metrics.Enabled = r.boolean("METRICS_ENABLED", true)
	cfg.Metrics.EnableLatencyHistograms = r.boolean("METRICS_LATENCY_HISTOGRAMS", false)
	return cfg
}

func (c ServerConfig) validate() error {
	switch c.StoreBackend {
	case StoreRedis:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("envconfig: DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("envconfig: STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}

	switch c.MailerBackend {
	case MailerLog:
	case MailerKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("envconfig: KAFKA_BROKERS is required when MAILER=kafka")
		}
	default:
		return fmt.Errorf("envconfig: MAILER: unknown backend %q", c.MailerBackend)
	}

	switch c.SealerBackend {
	case SealerNone:
		if c.IsProduction() {
			return errors.New("envconfig: SEALER=none is not allowed in production")
		}
	case SealerAES:
		if len(c.SealKey) != 32 {
			return errors.New("envconfig: SEAL_KEY must decode to 32 bytes when SEALER=aes")
		}
	case SealerKMS:
		if c.KMSKeyID == "" {
			return errors.New("envconfig: KMS_KEY_ID is required when SEALER=kms")
		}
	default:
		return fmt.Errorf("envconfig: SEALER: unknown backend %q", c.SealerBackend)
	}

	if c.IsProduction() && c.RedisAddr == "" {
		return errors.New("envconfig: REDIS_ADDR is required in production")
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("envconfig: %w", err)
	}
	return nil
}

// reader keeps the first parse error so Load can report it by variable name.
type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("envconfig: %s: %w", key, err)
	}
}

func (r *reader) str(key, fallback string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return fallback
}

func (r *reader) boolean(key string, fallback bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return b
}

func (r *reader) integer(key string, fallback int) int {
	v, ok := r.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return n
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return d
}

func (r *reader) list(key string) []string {
	v, ok := r.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// key accepts hex or standard base64.
func (r *reader) key(name string) []byte {
	v, ok := r.raw(name)
	if !ok {
		return nil
	}
	if b, err := hex.DecodeString(v); err == nil {
		return b
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		r.fail(name, errors.New("expected hex or base64"))
		return nil
	}
	return b
}

package ledgerAuth

import (
	"errors"
	"strings"
	"time"
)

// Config is the engine configuration. It is copied at Build.
type Config struct {
	JWT           JWTConfig
	TOTP          TOTPConfig
	RecoveryCodes RecoveryCodeConfig
	Password      PasswordConfig
	Account       AccountConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures session token issuance. Tokens are HS256 signed.
type JWTConfig struct {
	SigningKey   []byte
	TTL          time.Duration
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig sets the RFC 6238 parameters and the setup output.
type TOTPConfig struct {
	Issuer     string
	Period     int
	Digits     int
	Algorithm  string
	Skew       int
	SecretSize int

	// SendCodeOnLogin mails the current code after a password login on a
	// 2FA-enabled account. Delivery is best effort.
	SendCodeOnLogin bool
	IncludeQRCode   bool
	QRCodeSize      int
}

/*
====================================
RECOVERY CODE CONFIG
====================================
*/

// RecoveryCodeConfig sizes the code set minted on enable.
type RecoveryCodeConfig struct {
	Count  int
	Length int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id cost for new hashes.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// UpgradeOnLogin rehashes legacy or outdated hashes after a successful login.
	UpgradeOnLogin bool
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls the roles handed out at registration.
type AccountConfig struct {
	// DefaultRole is assigned to members created without an explicit role.
	DefaultRole string
	// OwnerRole is assigned to the account that founds a new organization.
	OwnerRole string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the optional hardening features. All of them are off
// by default and each one requires a redis client.
type SecurityConfig struct {
	RedisPrefix string

	RequireLoginChallenge bool
	ChallengeTTL          time.Duration
	MaxChallengeAttempts  int

	EnableVerificationLimiter bool
	MaxVerificationAttempts   int
	VerificationCooldown      time.Duration
	MaxSendCodeRequests       int
	SendCodeCooldown          time.Duration

	EnableLoginLimiter bool
	MaxLoginAttempts   int
	LoginCooldown      time.Duration

	EnableTokenDenyList bool
}

func (s SecurityConfig) needsRedis() bool {
	return s.RequireLoginChallenge || s.EnableVerificationLimiter || s.EnableLoginLimiter || s.EnableTokenDenyList
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig sizes the audit buffer.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration. A signing key must still
// be supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:          time.Hour,
			Leeway:       0,
			MaxFutureIAT: 30 * time.Second,
		},
		TOTP: TOTPConfig{
			Issuer:     "ledgerAuth",
			Period:     30,
			Digits:     6,
			Algorithm:  "SHA1",
			Skew:       1,
			SecretSize: 20,
			QRCodeSize: 256,
		},
		RecoveryCodes: RecoveryCodeConfig{
			Count:  5,
			Length: 10,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Account: AccountConfig{
			DefaultRole: "staff",
			OwnerRole:   "admin",
		},
		Security: SecurityConfig{
			RedisPrefix:             "la",
			ChallengeTTL:            5 * time.Minute,
			MaxChallengeAttempts:    5,
			MaxVerificationAttempts: 5,
			VerificationCooldown:    15 * time.Minute,
			MaxSendCodeRequests:     3,
			SendCodeCooldown:        10 * time.Minute,
			MaxLoginAttempts:        10,
			LoginCooldown:           15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting Build would reject.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.SigningKey) < 32 {
		return errors.New("JWT SigningKey must be at least 32 bytes")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return errors.New("JWT MaxFutureIAT must be >= 0")
	}

	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be set")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	if c.TOTP.SecretSize < 20 {
		return errors.New("TOTP SecretSize must be >= 20 bytes")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.TOTP.IncludeQRCode && c.TOTP.QRCodeSize < 64 {
		return errors.New("TOTP QRCodeSize must be >= 64 when IncludeQRCode is true")
	}

	// Recovery codes
	if c.RecoveryCodes.Count <= 0 {
		return errors.New("RecoveryCodes Count must be > 0")
	}
	if c.RecoveryCodes.Length < 8 {
		return errors.New("RecoveryCodes Length must be >= 8")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Account
	if c.Account.DefaultRole == "" || c.Account.OwnerRole == "" {
		return errors.New("Account DefaultRole and OwnerRole must be set")
	}

	// Security
	if c.Security.needsRedis() && strings.TrimSpace(c.Security.RedisPrefix) == "" {
		return errors.New("Security RedisPrefix must be set")
	}
	if c.Security.RequireLoginChallenge {
		if c.Security.ChallengeTTL <= 0 {
			return errors.New("Security ChallengeTTL must be > 0")
		}
		if c.Security.MaxChallengeAttempts <= 0 {
			return errors.New("Security MaxChallengeAttempts must be > 0")
		}
	}
	if c.Security.EnableVerificationLimiter {
		if c.Security.MaxVerificationAttempts <= 0 || c.Security.VerificationCooldown <= 0 {
			return errors.New("Security verification limiter requires MaxVerificationAttempts and VerificationCooldown > 0")
		}
		if c.Security.MaxSendCodeRequests <= 0 || c.Security.SendCodeCooldown <= 0 {
			return errors.New("Security verification limiter requires MaxSendCodeRequests and SendCodeCooldown > 0")
		}
	}
	if c.Security.EnableLoginLimiter {
		if c.Security.MaxLoginAttempts <= 0 || c.Security.LoginCooldown <= 0 {
			return errors.New("Security login limiter requires MaxLoginAttempts and LoginCooldown > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

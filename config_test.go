package ledgerAuth

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = []byte(strings.Repeat("k", 32))
	return cfg
}

func TestDefaultConfigNeedsOnlySigningKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without signing key to fail")
	}
	cfg = validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.Security.needsRedis() {
		t.Fatal("expected every redis-backed feature to be off by default")
	}
	if cfg.JWT.TTL != time.Hour || cfg.TOTP.Period != 30 || cfg.TOTP.Skew != 1 {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.JWT, cfg.TOTP)
	}
	if cfg.RecoveryCodes.Count != 5 || cfg.RecoveryCodes.Length != 10 {
		t.Fatalf("unexpected recovery code defaults: %+v", cfg.RecoveryCodes)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ttl", func(c *Config) { c.JWT.TTL = 0 }},
		{"negative leeway", func(c *Config) { c.JWT.Leeway = -time.Second }},
		{"empty issuer", func(c *Config) { c.TOTP.Issuer = " " }},
		{"seven digits", func(c *Config) { c.TOTP.Digits = 7 }},
		{"wide skew", func(c *Config) { c.TOTP.Skew = 3 }},
		{"short secret", func(c *Config) { c.TOTP.SecretSize = 10 }},
		{"md5", func(c *Config) { c.TOTP.Algorithm = "MD5" }},
		{"tiny qr", func(c *Config) { c.TOTP.IncludeQRCode = true; c.TOTP.QRCodeSize = 16 }},
		{"no recovery codes", func(c *Config) { c.RecoveryCodes.Count = 0 }},
		{"short recovery codes", func(c *Config) { c.RecoveryCodes.Length = 4 }},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }},
		{"no default role", func(c *Config) { c.Account.DefaultRole = "" }},
		{"empty prefix", func(c *Config) { c.Security.EnableTokenDenyList = true; c.Security.RedisPrefix = "" }},
		{"challenge ttl", func(c *Config) { c.Security.RequireLoginChallenge = true; c.Security.ChallengeTTL = 0 }},
		{"verification budget", func(c *Config) { c.Security.EnableVerificationLimiter = true; c.Security.MaxVerificationAttempts = 0 }},
		{"send code budget", func(c *Config) { c.Security.EnableVerificationLimiter = true; c.Security.SendCodeCooldown = 0 }},
		{"login budget", func(c *Config) { c.Security.EnableLoginLimiter = true; c.Security.LoginCooldown = 0 }},
		{"audit buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestWithConfigCopiesSigningKey(t *testing.T) {
	cfg := validConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.SigningKey[0] = 'x'
	if b.config.JWT.SigningKey[0] != 'k' {
		t.Fatal("builder must not alias the caller's signing key")
	}
}

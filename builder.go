package ledgerAuth

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/ledgerAuth/internal/audit"
	"github.com/MrEthical07/ledgerAuth/internal/limiters"
	"github.com/MrEthical07/ledgerAuth/internal/logging"
	"github.com/MrEthical07/ledgerAuth/internal/rate"
	"github.com/MrEthical07/ledgerAuth/internal/stores"
	"github.com/MrEthical07/ledgerAuth/jwt"
	"github.com/MrEthical07/ledgerAuth/mail"
	"github.com/MrEthical07/ledgerAuth/password"
	"github.com/MrEthical07/ledgerAuth/permission"
	"github.com/MrEthical07/ledgerAuth/seal"
)

// dummyPassword is hashed once at build time. Logins for unknown emails
// verify against it so they cost the same as a real mismatch.
const dummyPassword = "ledgerAuth-dummy-Passw0rd!"

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  CredentialStore

	permissions []string
	roles       []permission.RoleDefinition

	mailer    mail.Mailer
	sealer    seal.Sealer
	auditSink AuditSink
	logger    *zap.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig and the default role table.
func New() *Builder {
	return &Builder{
		config:      defaultConfig(),
		permissions: permission.DefaultPermissions(),
		roles:       permission.DefaultRoles(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used by the optional Security features.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithStore(s CredentialStore) *Builder {
	b.store = s
	return b
}

// WithPermissions replaces the permission catalogue.
func (b *Builder) WithPermissions(perms []string) *Builder {
	b.permissions = append([]string(nil), perms...)
	return b
}

// WithRoles replaces the role table.
func (b *Builder) WithRoles(roles []permission.RoleDefinition) *Builder {
	b.roles = append([]permission.RoleDefinition(nil), roles...)
	return b
}

func (b *Builder) WithMailer(m mail.Mailer) *Builder {
	b.mailer = m
	return b
}

// WithSealer sets how TOTP secrets are protected at rest. The default stores
// them unsealed.
func (b *Builder) WithSealer(s seal.Sealer) *Builder {
	b.sealer = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token stamps, code windows and challenge
// expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if cfg.Security.needsRedis() && b.redis == nil {
		return nil, errors.New("redis client required by the enabled security features")
	}

	registry, roleManager, err := permission.BuildTable(b.permissions, b.roles)
	if err != nil {
		return nil, err
	}
	for _, role := range []string{cfg.Account.DefaultRole, cfg.Account.OwnerRole} {
		if _, ok := roleManager.GetMask(role); !ok {
			return nil, errors.New("Account role " + role + " does not exist in role table")
		}
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Nop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		store:       b.store,
		registry:    registry,
		roleManager: roleManager,
		mailer:      b.mailer,
		sealer:      b.sealer,
		logger:      logger,
		warn:        logger.Sugar().Warnw,
		now:         now,
		metrics:     NewMetrics(cfg.Metrics),
	}
	if engine.mailer == nil {
		engine.mailer = mail.NewLogMailer(logger)
	}
	if engine.sealer == nil {
		engine.sealer = seal.Plaintext{}
	}

	ph, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph
	if engine.dummyHash, err = ph.Hash(dummyPassword); err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		TTL:          cfg.JWT.TTL,
		SigningKey:   cloneBytes(cfg.JWT.SigningKey),
		Issuer:       cfg.JWT.Issuer,
		Audience:     cfg.JWT.Audience,
		Leeway:       cfg.JWT.Leeway,
		MaxFutureIAT: cfg.JWT.MaxFutureIAT,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	otp, err := NewOTPEngine(cfg.TOTP)
	if err != nil {
		return nil, err
	}
	engine.otp = otp

	sec := cfg.Security
	prefix := sec.RedisPrefix
	if sec.RequireLoginChallenge {
		engine.challenges = stores.NewChallengeStore(b.redis, prefix+":lac").WithClock(now)
	}
	if sec.EnableTokenDenyList {
		engine.denyList = stores.NewDenyList(b.redis, prefix+":deny")
	}
	if sec.EnableLoginLimiter {
		engine.loginLimiter = rate.New(b.redis, rate.Config{
			Prefix:           prefix,
			MaxLoginAttempts: sec.MaxLoginAttempts,
			LoginCooldown:    sec.LoginCooldown,
		})
	}
	if sec.EnableVerificationLimiter {
		engine.codeLimiter = limiters.NewVerificationLimiter(b.redis, limiters.VerificationConfig{
			Prefix:      prefix + ":otpv",
			MaxAttempts: sec.MaxVerificationAttempts,
			Cooldown:    sec.VerificationCooldown,
		})
		engine.recoveryLimiter = limiters.NewVerificationLimiter(b.redis, limiters.VerificationConfig{
			Prefix:      prefix + ":rcv",
			MaxAttempts: sec.MaxVerificationAttempts,
			Cooldown:    sec.VerificationCooldown,
		})
		engine.sendCodeLimiter = limiters.NewSendCodeLimiter(b.redis, limiters.SendCodeConfig{
			Prefix:      prefix + ":sndc",
			MaxRequests: sec.MaxSendCodeRequests,
			Cooldown:    sec.SendCodeCooldown,
		})
	}

	sink := b.auditSink
	if sink == nil {
		sink = NewZapSink(logger)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Retain:     auditRetained,
		OnDrop: func(ev audit.Event) {
			logger.Warn("audit event dropped", zap.String("event", ev.EventType))
		},
	}, sink)

	b.built = true
	return engine, nil
}

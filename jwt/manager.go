package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for every verification failure: bad encoding,
// bad signature, wrong algorithm, expiry, issuer or audience mismatch.
var ErrInvalidToken = errors.New("invalid session token")

const minKeyBytes = 32

// Config holds the HS256 key and the claim checks applied on parse.
type Config struct {
	TTL          time.Duration
	SigningKey   []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration

	// KeyID is written to the kid header. When VerifyKeys is set, tokens are
	// verified with the key matching their kid, which allows key rotation.
	KeyID      string
	VerifyKeys map[string][]byte

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Manager issues and verifies HS256 session tokens.
type Manager struct {
	config Config
}

// SessionClaims is the claim set carried by a session token.
type SessionClaims struct {
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	OrganizationID string `json:"organizationId"`
	Is2FAEnabled   bool   `json:"is2FAEnabled"`
	Is2FAVerified  bool   `json:"is2FAVerified"`
	jwt.RegisteredClaims
}

// TokenID returns the jti claim.
func (c *SessionClaims) TokenID() string {
	return c.ID
}

// ExpiresAtTime returns the exp claim or the zero time.
func (c *SessionClaims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// NewManager validates cfg. Signing and verify keys need at least 32 bytes.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if len(cfg.SigningKey) < minKeyBytes {
		return nil, fmt.Errorf("hs256 signing key must be at least %d bytes", minKeyBytes)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if len(key) < minKeyBytes {
			return nil, fmt.Errorf("verify key for kid %q is shorter than %d bytes", kid, minKeyBytes)
		}
	}
	if len(cfg.VerifyKeys) > 0 {
		if cfg.KeyID == "" {
			return nil, errors.New("KeyID is required when VerifyKeys is set")
		}
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cfg.SigningKey = append([]byte(nil), cfg.SigningKey...)
	return &Manager{config: cfg}, nil
}

// TTL returns the configured token lifetime.
func (j *Manager) TTL() time.Duration {
	return j.config.TTL
}

// Issue signs claims after stamping iat, exp and a fresh jti. Registered
// claims already present on the input are overwritten.
func (j *Manager) Issue(claims SessionClaims) (string, error) {
	if strings.TrimSpace(claims.UserID) == "" {
		return "", errors.New("session claims require a user id")
	}

	now := j.config.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.config.TTL)),
		Issuer:    j.config.Issuer,
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	return token.SignedString(j.signKey())
}

// Verify checks signature, algorithm and timing claims and returns the
// decoded claims. Any failure is reported as ErrInvalidToken.
func (j *Manager) Verify(tokenStr string) (*SessionClaims, error) {
	claims, err := j.parse(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (j *Manager) parse(tokenStr string) (*SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(j.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := j.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return key, nil
		}

		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return j.signKey(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := j.config.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, errors.New("token iat too far in the future")
		}
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, errors.New("token missing user id")
	}

	return claims, nil
}

func (j *Manager) signKey() []byte {
	if len(j.config.VerifyKeys) > 0 {
		return j.config.VerifyKeys[j.config.KeyID]
	}
	return j.config.SigningKey
}

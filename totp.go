package ledgerAuth

import (
	"bytes"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// OTPSecret is a freshly generated shared secret.
type OTPSecret struct {
	Raw             []byte
	Encoded         string
	ProvisioningURI string
}

// OTPEngine derives and verifies time-stepped numeric codes. It performs no
// I/O and reads no clock of its own, so every call is deterministic given its
// arguments.
type OTPEngine struct {
	config TOTPConfig
	opts   totp.ValidateOpts
}

// NewOTPEngine defaults the algorithm to SHA1 and validates the rest of cfg.
func NewOTPEngine(cfg TOTPConfig) (*OTPEngine, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.Period <= 0 || cfg.Skew < 0 || cfg.SecretSize <= 0 {
		return nil, fmt.Errorf("%w: totp period, skew and secret size must be positive", ErrInvalidInput)
	}

	digits, err := otpDigits(cfg.Digits)
	if err != nil {
		return nil, err
	}
	alg, err := otpAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	return &OTPEngine{
		config: cfg,
		opts: totp.ValidateOpts{
			Period:    uint(cfg.Period),
			Skew:      0,
			Digits:    digits,
			Algorithm: alg,
		},
	}, nil
}

// GenerateSecret creates a random secret of SecretSize bytes and the
// otpauth:// provisioning URI that authenticator apps consume.
func (m *OTPEngine) GenerateSecret(accountName string) (OTPSecret, error) {
	if m == nil {
		return OTPSecret{}, ErrEngineNotReady
	}
	if strings.TrimSpace(accountName) == "" {
		return OTPSecret{}, fmt.Errorf("%w: account name required", ErrInvalidInput)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: accountName,
		Period:      m.opts.Period,
		SecretSize:  uint(m.config.SecretSize),
		Digits:      m.opts.Digits,
		Algorithm:   m.opts.Algorithm,
	})
	if err != nil {
		return OTPSecret{}, err
	}

	raw, err := secretEncoding.DecodeString(key.Secret())
	if err != nil {
		return OTPSecret{}, err
	}

	return OTPSecret{
		Raw:             raw,
		Encoded:         key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// ComputeCode returns the code for the time step containing at.
func (m *OTPEngine) ComputeCode(secret string, at time.Time) (string, error) {
	if m == nil {
		return "", ErrEngineNotReady
	}
	normalized, err := normalizeSecret(secret)
	if err != nil {
		return "", err
	}
	return m.codeAt(normalized, at)
}

// VerifyCode reports whether code matches the step containing at or any step
// within Skew of it. Codes of the wrong length or with non-digit characters
// are rejected before any derivation. Every candidate is compared in constant
// time and the loop does not stop early on a match.
func (m *OTPEngine) VerifyCode(secret, code string, at time.Time) (bool, error) {
	if m == nil {
		return false, ErrEngineNotReady
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !isNumericString(trimmed) {
		return false, nil
	}

	normalized, err := normalizeSecret(secret)
	if err != nil {
		return false, err
	}

	period := int64(m.config.Period)
	base := at.Unix() / period
	matched := 0
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := m.codeAt(normalized, time.Unix(counter*period, 0))
		if err != nil {
			return false, err
		}
		matched |= subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed))
	}

	return matched == 1, nil
}

// QRCodePNG renders a provisioning URI as a square PNG.
func (m *OTPEngine) QRCodePNG(uri string, size int) ([]byte, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	img, err := key.Image(size, size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *OTPEngine) codeAt(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at, m.opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return code, nil
}

// normalizeSecret upper-cases and validates a base32 secret so that malformed
// material is reported as ErrInvalidInput rather than as a mismatch.
func normalizeSecret(secret string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(secret))
	s = strings.TrimRight(s, "=")
	if s == "" {
		return "", fmt.Errorf("%w: empty totp secret", ErrInvalidInput)
	}
	if _, err := secretEncoding.DecodeString(s); err != nil {
		return "", fmt.Errorf("%w: malformed totp secret", ErrInvalidInput)
	}
	return s, nil
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func otpDigits(d int) (otp.Digits, error) {
	switch d {
	case 6:
		return otp.DigitsSix, nil
	case 8:
		return otp.DigitsEight, nil
	default:
		return 0, errors.New("totp digits must be 6 or 8")
	}
}

func otpAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, errors.New("unsupported totp algorithm")
	}
}

package ledgerAuth

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func rfcEngine(t *testing.T, alg string, digits, skew int) *OTPEngine {
	t.Helper()
	m, err := NewOTPEngine(TOTPConfig{
		Issuer:     "ledgerAuth",
		Digits:     digits,
		Period:     30,
		Algorithm:  alg,
		Skew:       skew,
		SecretSize: 20,
	})
	if err != nil {
		t.Fatalf("NewOTPEngine failed: %v", err)
	}
	return m
}

func encodeSecret(raw string) string {
	return secretEncoding.EncodeToString([]byte(raw))
}

func TestTOTPVerifyRFCVectors(t *testing.T) {
	suites := []struct {
		alg    string
		secret string
		codes  map[int64]string
	}{
		{
			alg:    "SHA1",
			secret: "12345678901234567890",
			codes: map[int64]string{
				59:          "94287082",
				1111111109:  "07081804",
				1111111111:  "14050471",
				1234567890:  "89005924",
				2000000000:  "69279037",
				20000000000: "65353130",
			},
		},
		{
			alg:    "SHA256",
			secret: "12345678901234567890123456789012",
			codes: map[int64]string{
				59:          "46119246",
				1111111109:  "68084774",
				1111111111:  "67062674",
				1234567890:  "91819424",
				2000000000:  "90698825",
				20000000000: "77737706",
			},
		},
		{
			alg:    "SHA512",
			secret: "1234567890123456789012345678901234567890123456789012345678901234",
			codes: map[int64]string{
				59:          "90693936",
				1111111109:  "25091201",
				1111111111:  "99943326",
				1234567890:  "93441116",
				2000000000:  "38618901",
				20000000000: "47863826",
			},
		},
	}

	for _, suite := range suites {
		m := rfcEngine(t, suite.alg, 8, 0)
		secret := encodeSecret(suite.secret)
		for ts, code := range suite.codes {
			got, err := m.ComputeCode(secret, time.Unix(ts, 0))
			if err != nil || got != code {
				t.Fatalf("%s ComputeCode at t=%d = %q, %v; want %q", suite.alg, ts, got, err, code)
			}
			ok, err := m.VerifyCode(secret, code, time.Unix(ts, 0))
			if err != nil || !ok {
				t.Fatalf("%s vector failed at t=%d, ok=%v err=%v", suite.alg, ts, ok, err)
			}
		}
	}
}

func TestTOTPWindowAcceptsAdjacentStepOnly(t *testing.T) {
	m := rfcEngine(t, "SHA1", 6, 1)
	secret := encodeSecret("12345678901234567890")

	// 29 seconds into a step: +15s lands in the next step, +31s two steps away.
	base := time.Unix(1234567890/30*30+29, 0)
	code, err := m.ComputeCode(secret, base)
	if err != nil {
		t.Fatalf("ComputeCode failed: %v", err)
	}

	cases := []struct {
		offset time.Duration
		want   bool
	}{
		{0, true},
		{15 * time.Second, true},
		{-15 * time.Second, true},
		{31 * time.Second, false},
		{-60 * time.Second, false},
	}
	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, code, base.Add(tc.offset))
		if err != nil {
			t.Fatalf("VerifyCode at %v failed: %v", tc.offset, err)
		}
		if ok != tc.want {
			t.Fatalf("VerifyCode at offset %v = %v, want %v", tc.offset, ok, tc.want)
		}
	}
}

func TestTOTPVerifyRoundTripAcrossTimes(t *testing.T) {
	m := rfcEngine(t, "SHA1", 6, 1)
	secret, err := m.GenerateSecret("owner@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	for _, ts := range []int64{0, 1, 29, 30, 59, 1700000000, 4102444800} {
		at := time.Unix(ts, 0)
		code, err := m.ComputeCode(secret.Encoded, at)
		if err != nil {
			t.Fatalf("ComputeCode failed at %d: %v", ts, err)
		}
		ok, err := m.VerifyCode(secret.Encoded, code, at)
		if err != nil || !ok {
			t.Fatalf("round trip failed at %d, ok=%v err=%v", ts, ok, err)
		}
	}
}

func TestTOTPFastFailOnMalformedCode(t *testing.T) {
	m := rfcEngine(t, "SHA1", 6, 1)
	// The secret is malformed on purpose: a fast-fail must return before it is decoded.
	for _, code := range []string{"", "12345", "1234567", "12a456", "12 456", "１２３４５６"} {
		ok, err := m.VerifyCode("not base32!", code, time.Now())
		if err != nil {
			t.Fatalf("code %q: expected fast-fail without error, got %v", code, err)
		}
		if ok {
			t.Fatalf("code %q: expected rejection", code)
		}
	}
}

func TestTOTPMalformedSecretIsInvalidInput(t *testing.T) {
	m := rfcEngine(t, "SHA1", 6, 1)
	for _, secret := range []string{"", "   ", "!!!!", "0189"} {
		if _, err := m.VerifyCode(secret, "123456", time.Now()); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("secret %q: expected ErrInvalidInput, got %v", secret, err)
		}
		if _, err := m.ComputeCode(secret, time.Now()); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("secret %q: expected ErrInvalidInput from ComputeCode, got %v", secret, err)
		}
	}
}

func TestTOTPSecretAcceptsLowercaseAndPadding(t *testing.T) {
	m := rfcEngine(t, "SHA1", 6, 0)
	secret := encodeSecret("12345678901234567890")
	at := time.Unix(1111111109, 0)
	want, err := m.ComputeCode(secret, at)
	if err != nil {
		t.Fatalf("ComputeCode failed: %v", err)
	}
	got, err := m.ComputeCode(strings.ToLower(secret)+"====", at)
	if err != nil || got != want {
		t.Fatalf("expected normalized secret to match, got %q err=%v", got, err)
	}
}

func TestTOTPGenerateSecret(t *testing.T) {
	m := rfcEngine(t, "SHA1", 6, 1)
	a, err := m.GenerateSecret("owner@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	b, err := m.GenerateSecret("owner@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	if len(a.Raw) < 20 {
		t.Fatalf("expected >=160-bit secret, got %d bytes", len(a.Raw))
	}
	if bytes.Equal(a.Raw, b.Raw) || a.Encoded == b.Encoded {
		t.Fatal("expected distinct secrets")
	}
	if strings.Contains(a.Encoded, "=") {
		t.Fatal("expected unpadded base32 secret")
	}
	if !strings.HasPrefix(a.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning uri %q", a.ProvisioningURI)
	}
	for _, part := range []string{"secret=" + a.Encoded, "issuer=ledgerAuth", "period=30", "digits=6", "algorithm=SHA1"} {
		if !strings.Contains(a.ProvisioningURI, part) {
			t.Fatalf("provisioning uri %q missing %q", a.ProvisioningURI, part)
		}
	}

	if _, err := m.GenerateSecret("  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty account, got %v", err)
	}
}

func TestTOTPQRCodePNG(t *testing.T) {
	m := rfcEngine(t, "SHA1", 6, 1)
	s, err := m.GenerateSecret("owner@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	img, err := m.QRCodePNG(s.ProvisioningURI, 128)
	if err != nil {
		t.Fatalf("QRCodePNG failed: %v", err)
	}
	if !bytes.HasPrefix(img, []byte("\x89PNG")) {
		t.Fatal("expected PNG signature")
	}
}

func TestNewOTPEngineRejectsBadConfig(t *testing.T) {
	bad := []TOTPConfig{
		{Issuer: "x", Digits: 7, Period: 30, Skew: 1, SecretSize: 20},
		{Issuer: "x", Digits: 6, Period: 0, Skew: 1, SecretSize: 20},
		{Issuer: "x", Digits: 6, Period: 30, Skew: 1, SecretSize: 20, Algorithm: "MD5"},
	}
	for i, cfg := range bad {
		if _, err := NewOTPEngine(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

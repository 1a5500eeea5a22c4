package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestNewBuildsBothEnvironments(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		l, err := New(env, "info", "json")
		if err != nil {
			t.Fatalf("New(%s) failed: %v", env, err)
		}
		if l == nil {
			t.Fatalf("New(%s) returned nil logger", env)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("alice@example.com"); got != strings.Repeat("*", 15)+"om" {
		t.Fatalf("unexpected redaction %q", got)
	}
	if got := Redact("a"); got != "**" {
		t.Fatalf("unexpected short redaction %q", got)
	}
}

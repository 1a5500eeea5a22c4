package password

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePolicy(t *testing.T) {
	cases := []struct {
		pw   string
		want error
	}{
		{"abc", ErrPolicyLength},
		{"Abcdef1!", nil},
		{"Ab1!" + strings.Repeat("x", 46), nil},
		{"Ab1!" + strings.Repeat("x", 47), ErrPolicyLength},
		{"ABCDEF1!", ErrPolicyLower},
		{"abcdef1!", ErrPolicyUpper},
		{"Abcdefg!", ErrPolicyDigit},
		{"Abcdefg1", ErrPolicySymbol},
		{"Äbcdéf1~", nil},
		{"Abc def1", ErrPolicySymbol},
	}
	for _, tc := range cases {
		if err := ValidatePolicy(tc.pw); !errors.Is(err, tc.want) {
			t.Fatalf("ValidatePolicy(%q) = %v, want %v", tc.pw, err, tc.want)
		}
	}
}

func TestValidatePolicyCountsCharactersNotBytes(t *testing.T) {
	// 50 characters, more than 50 bytes.
	pw := "Aé1!" + strings.Repeat("é", 46)
	if err := ValidatePolicy(pw); err != nil {
		t.Fatalf("expected 50-character password to pass, got %v", err)
	}
}

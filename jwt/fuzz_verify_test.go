package jwt

import (
	"testing"
	"time"
)

func FuzzVerify(f *testing.F) {
	m, err := NewManager(Config{TTL: time.Hour, SigningKey: testKey})
	if err != nil {
		f.Fatalf("new manager: %v", err)
	}
	valid, err := m.Issue(SessionClaims{UserID: "acc-1", Email: "owner@example.com", OrganizationID: "org-1"})
	if err != nil {
		f.Fatalf("issue: %v", err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := m.Verify(token)
		if err == nil && claims.UserID == "" {
			t.Fatal("verified token without user id")
		}
	})
}

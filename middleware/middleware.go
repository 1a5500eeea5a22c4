package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	ledgerAuth "github.com/MrEthical07/ledgerAuth"
)

// ClaimsFromRequest returns the claims stored by Authenticate.
func ClaimsFromRequest(r *http.Request) (*ledgerAuth.SessionClaims, bool) {
	return ledgerAuth.SessionClaimsFromContext(r.Context())
}

// Authenticate verifies the Authorization bearer token. Missing, malformed,
// expired and revoked tokens are all answered with 401.
func Authenticate(engine *ledgerAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteMessage(w, http.StatusUnauthorized, "authorization token missing")
				return
			}

			claims, err := engine.VerifySessionToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, ledgerAuth.ErrTokenInvalid) {
					WriteMessage(w, http.StatusUnauthorized, ledgerAuth.ErrTokenInvalid.Error())
					return
				}
				WriteMessage(w, http.StatusServiceUnavailable, "authentication unavailable")
				return
			}

			ctx := ledgerAuth.WithSessionClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVerified answers 403 when the account has 2FA enabled and the
// session has not passed it yet.
func RequireVerified() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromRequest(r)
			if !ok {
				WriteMessage(w, http.StatusUnauthorized, ledgerAuth.ErrUnauthorized.Error())
				return
			}
			if claims.Is2FAEnabled && !claims.Is2FAVerified {
				WriteMessage(w, http.StatusForbidden, ledgerAuth.ErrTwoFactorRequired.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits accounts whose current role is one of roles.
func RequireRole(engine *ledgerAuth.Engine, roles ...string) func(http.Handler) http.Handler {
	return gate(func(r *http.Request, claims *ledgerAuth.SessionClaims) error {
		return engine.AuthorizeRole(r.Context(), claims.UserID, roles...)
	})
}

// RequirePermission admits accounts whose current role grants perm.
func RequirePermission(engine *ledgerAuth.Engine, perm string) func(http.Handler) http.Handler {
	return gate(func(r *http.Request, claims *ledgerAuth.SessionClaims) error {
		return engine.AuthorizePermission(r.Context(), claims.UserID, perm)
	})
}

// RequireOrganization compares the organization ID extracted by param with
// the session's organization.
func RequireOrganization(engine *ledgerAuth.Engine, param func(*http.Request) string) func(http.Handler) http.Handler {
	return gate(func(r *http.Request, claims *ledgerAuth.SessionClaims) error {
		return engine.AuthorizeOrganization(claims, param(r))
	})
}

func gate(check func(*http.Request, *ledgerAuth.SessionClaims) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromRequest(r)
			if !ok {
				WriteMessage(w, http.StatusUnauthorized, ledgerAuth.ErrUnauthorized.Error())
				return
			}
			if err := check(r, claims); err != nil {
				switch {
				case errors.Is(err, ledgerAuth.ErrForbidden):
					WriteMessage(w, http.StatusForbidden, ledgerAuth.ErrForbidden.Error())
				case errors.Is(err, ledgerAuth.ErrAccountNotFound), errors.Is(err, ledgerAuth.ErrUnauthorized):
					// The account behind a still-valid token is gone.
					WriteMessage(w, http.StatusUnauthorized, ledgerAuth.ErrUnauthorized.Error())
				default:
					WriteMessage(w, http.StatusServiceUnavailable, "authorization unavailable")
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteMessage writes {"message": msg} with status.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, struct {
		Message string `json:"message"`
	}{Message: msg})
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

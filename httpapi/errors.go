package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	ledgerAuth "github.com/MrEthical07/ledgerAuth"
	"github.com/MrEthical07/ledgerAuth/middleware"
)

const internalErrorMessage = "internal server error"

var statusByError = []struct {
	status int
	errs   []error
}{
	{http.StatusBadRequest, []error{
		ledgerAuth.ErrValidation,
		ledgerAuth.ErrInvalidInput,
		ledgerAuth.ErrPasswordPolicy,
		ledgerAuth.ErrPasswordReuse,
		ledgerAuth.ErrInvalidCredentials,
		ledgerAuth.ErrAccountRoleInvalid,
		ledgerAuth.ErrInvalidCode,
		ledgerAuth.ErrInvalidRecoveryCode,
		ledgerAuth.ErrTOTPNotConfigured,
		ledgerAuth.ErrTOTPNotEnabled,
		ledgerAuth.ErrTOTPAlreadyEnabled,
		ledgerAuth.ErrChallengeInvalid,
	}},
	{http.StatusUnauthorized, []error{
		ledgerAuth.ErrTokenInvalid,
		ledgerAuth.ErrUnauthorized,
	}},
	{http.StatusForbidden, []error{
		ledgerAuth.ErrForbidden,
		ledgerAuth.ErrTwoFactorRequired,
		ledgerAuth.ErrAccountInactive,
	}},
	{http.StatusNotFound, []error{
		ledgerAuth.ErrAccountNotFound,
	}},
	{http.StatusConflict, []error{
		ledgerAuth.ErrAccountExists,
	}},
	{http.StatusTooManyRequests, []error{
		ledgerAuth.ErrLoginRateLimited,
		ledgerAuth.ErrVerificationRateLimited,
		ledgerAuth.ErrSendCodeRateLimited,
		ledgerAuth.ErrChallengeAttemptsExceeded,
	}},
}

// statusFor returns the HTTP status and the matched sentinel. A nil
// sentinel means the error is internal.
func statusFor(err error) (int, error) {
	for _, group := range statusByError {
		for _, sentinel := range group.errs {
			if errors.Is(err, sentinel) {
				return group.status, sentinel
			}
		}
	}
	return http.StatusInternalServerError, nil
}

// writeError answers with the sentinel's message. Internal errors are logged
// and replaced by a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, sentinel := statusFor(err)
	if sentinel == nil {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
		middleware.WriteMessage(w, status, internalErrorMessage)
		return
	}
	middleware.WriteMessage(w, status, sentinel.Error())
}

package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	ledgerAuth "github.com/MrEthical07/ledgerAuth"
	"github.com/MrEthical07/ledgerAuth/middleware"
)

type messageResponse struct {
	Message string `json:"message"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message       string `json:"message"`
	Token         string `json:"token"`
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	Is2FAEnabled  bool   `json:"is2FAEnabled"`
	Is2FAVerified bool   `json:"is2FAVerified"`
	ChallengeID   string `json:"challengeId,omitempty"`
}

type generateSecretResponse struct {
	Message    string `json:"message"`
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	// QRCode is a data URL of the PNG rendering.
	QRCode string `json:"qrCode,omitempty"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type verifyEnableResponse struct {
	Message       string   `json:"message"`
	RecoveryCodes []string `json:"recoveryCodes"`
}

type verifyLoginCodeRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	ChallengeID string `json:"challengeId,omitempty"`
}

type verifyRecoveryCodeRequest struct {
	Email        string `json:"email"`
	RecoveryCode string `json:"recoveryCode"`
	ChallengeID  string `json:"challengeId,omitempty"`
}

type verifiedResponse struct {
	Message       string `json:"message"`
	Token         string `json:"token"`
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	Is2FAVerified bool   `json:"is2FAVerified"`
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type createMemberRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type createMemberResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type setStatusRequest struct {
	Active *bool `json:"active"`
}

type meResponse struct {
	UserID         string    `json:"userId"`
	Email          string    `json:"email"`
	OrganizationID string    `json:"organizationId"`
	Is2FAEnabled   bool      `json:"is2FAEnabled"`
	Is2FAVerified  bool      `json:"is2FAVerified"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type memberView struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	Is2FAEnabled bool      `json:"is2FAEnabled"`
	CreatedAt    time.Time `json:"createdAt"`
}

type membersResponse struct {
	Members []memberView `json:"members"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": s.opts.ServiceName})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	_, err := s.engine.Register(r.Context(), ledgerAuth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg := "Login successful"
	if res.Requires2FA {
		msg = "Password verified; 2FA code required"
	}
	middleware.WriteJSON(w, http.StatusOK, loginResponse{
		Message:       msg,
		Token:         res.Token,
		UserID:        res.AccountID,
		Email:         res.Email,
		Is2FAEnabled:  res.Requires2FA,
		Is2FAVerified: res.Is2FAVerified,
		ChallengeID:   res.ChallengeID,
	})
}

func (s *Server) generateSecret(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromRequest(r)
	setup, err := s.engine.GenerateSecret(r.Context(), claims)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := generateSecretResponse{
		Message:    "Scan the QR code or enter the secret in your authenticator app, then verify a code",
		Secret:     setup.Secret,
		OTPAuthURL: setup.OTPAuthURL,
	}
	if len(setup.QRCodePNG) > 0 {
		resp.QRCode = "data:image/png;base64," + base64.StdEncoding.EncodeToString(setup.QRCodePNG)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) verifyEnable(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !s.decode(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFromRequest(r)
	codes, err := s.engine.VerifyEnable(r.Context(), claims, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, verifyEnableResponse{
		Message:       "2FA enabled. Store these recovery codes somewhere safe; they will not be shown again",
		RecoveryCodes: codes,
	})
}

func (s *Server) verifyLoginCode(w http.ResponseWriter, r *http.Request) {
	var req verifyLoginCodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	session, err := s.engine.VerifyLoginCode(r.Context(), ledgerAuth.VerifyLoginCodeInput{
		Email:       req.Email,
		Code:        req.Code,
		ChallengeID: req.ChallengeID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, verified("2FA verification successful", session))
}

func (s *Server) verifyRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRecoveryCodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	session, err := s.engine.VerifyRecoveryCode(r.Context(), ledgerAuth.VerifyRecoveryCodeInput{
		Email:       req.Email,
		Code:        req.RecoveryCode,
		ChallengeID: req.ChallengeID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, verified("Recovery code accepted", session))
}

func verified(msg string, session *ledgerAuth.VerifiedSession) verifiedResponse {
	return verifiedResponse{
		Message:       msg,
		Token:         session.Token,
		UserID:        session.AccountID,
		Email:         session.Email,
		Is2FAVerified: true,
	}
}

func (s *Server) sendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.SendCode(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Verification code sent"})
}

func (s *Server) disable2FA(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromRequest(r)
	if err := s.engine.DisableTOTP(r.Context(), claims); err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "2FA disabled"})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFromRequest(r)
	if err := s.engine.ChangePassword(r.Context(), claims, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromRequest(r)
	if err := s.engine.Logout(r.Context(), claims); err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromRequest(r)
	middleware.WriteJSON(w, http.StatusOK, meResponse{
		UserID:         claims.UserID,
		Email:          claims.Email,
		OrganizationID: claims.OrganizationID,
		Is2FAEnabled:   claims.Is2FAEnabled,
		Is2FAVerified:  claims.Is2FAVerified,
		ExpiresAt:      claims.ExpiresAtTime().UTC(),
	})
}

func (s *Server) createMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if !s.decode(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFromRequest(r)
	acc, err := s.engine.CreateMember(r.Context(), claims, ledgerAuth.CreateMemberInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, createMemberResponse{Message: "User created", UserID: acc.AccountID})
}

func (s *Server) changeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if !s.decode(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFromRequest(r)
	if err := s.engine.ChangeRole(r.Context(), claims, chi.URLParam(r, "userId"), req.Role); err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Role updated"})
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		s.writeError(w, r, ledgerAuth.ErrValidation)
		return
	}
	claims, _ := middleware.ClaimsFromRequest(r)
	if err := s.engine.SetAccountActive(r.Context(), claims, chi.URLParam(r, "userId"), *req.Active); err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Status updated"})
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromRequest(r)
	members, err := s.engine.ListMembers(r.Context(), claims)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := membersResponse{Members: make([]memberView, 0, len(members))}
	for _, m := range members {
		resp.Members = append(resp.Members, memberView{
			UserID:       m.AccountID,
			Email:        m.Email,
			Name:         m.Name,
			Role:         m.Role,
			Active:       m.Active,
			Is2FAEnabled: m.TOTPEnabled,
			CreatedAt:    m.CreatedAt.UTC(),
		})
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into dst. Malformed or oversized bodies are
// answered with 400 and decode returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

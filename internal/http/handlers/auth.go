package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bazarcheh/auth-service/internal/auth"
	"github.com/bazarcheh/auth-service/internal/logger"
	"github.com/bazarcheh/auth-service/internal/middleware"
	"github.com/bazarcheh/auth-service/internal/model"
)

const refreshCookieName = "refreshToken"

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	svc        *auth.Service
	refreshTTL time.Duration
	production bool
	log        *logrus.Logger
}

// NewAuthHandler creates the handler. Outside production, plaintext OTPs
// and raw refresh tokens are echoed in response bodies as a fallback to
// cookie delivery.
func NewAuthHandler(svc *auth.Service, refreshTTL time.Duration, production bool, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		svc:        svc,
		refreshTTL: refreshTTL,
		production: production,
		log:        log,
	}
}

type requestOtpRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Purpose     string `json:"purpose"`
}

type requestOtpResponse struct {
	Success bool   `json:"success"`
	Otp     string `json:"otp,omitempty"`
}

type credentialsRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Otp         string `json:"otp"`
}

type userResponse struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
}

type sessionResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// HandleRequestOtp handles POST /auth/request-otp.
func (h *AuthHandler) HandleRequestOtp(w http.ResponseWriter, r *http.Request) {
	var req requestOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.PhoneNumber == "" {
		respondWithError(w, http.StatusBadRequest, "phoneNumber is required")
		return
	}

	purpose := model.OtpPurpose(strings.TrimSpace(req.Purpose))
	if purpose == "" {
		purpose = model.OtpPurposeLogin
	}
	if purpose != model.OtpPurposeLogin && purpose != model.OtpPurposeSignup {
		respondWithError(w, http.StatusBadRequest, "purpose must be \"login\" or \"signup\"")
		return
	}

	code, err := h.svc.RequestOtp(r.Context(), req.PhoneNumber, purpose)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			respondWithError(w, http.StatusBadRequest, "user not found")
		case errors.Is(err, auth.ErrUserAlreadyExists):
			respondWithError(w, http.StatusBadRequest, "user already exists")
		default:
			h.log.WithError(err).WithField("phone", logger.MaskPhone(req.PhoneNumber)).Error("request OTP failed")
			respondWithError(w, http.StatusBadRequest, "failed to request OTP")
		}
		return
	}

	resp := requestOtpResponse{Success: true}
	if !h.production {
		resp.Otp = code
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleSignup handles POST /auth/signup.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	h.handleCredentials(w, r, h.svc.Signup)
}

// HandleLogin handles POST /auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.handleCredentials(w, r, h.svc.Login)
}

func (h *AuthHandler) handleCredentials(
	w http.ResponseWriter,
	r *http.Request,
	flow func(ctx context.Context, phone, password, code string) (*auth.AuthResult, error),
) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Otp = strings.TrimSpace(req.Otp)
	if req.PhoneNumber == "" || req.Password == "" || req.Otp == "" {
		respondWithError(w, http.StatusBadRequest, "phoneNumber, password and otp are required")
		return
	}

	result, err := flow(r.Context(), req.PhoneNumber, req.Password, req.Otp)
	if err != nil {
		h.respondCredentialsError(w, req.PhoneNumber, err)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken)
	resp := sessionResponse{
		User: userResponse{
			ID:          result.User.ID.String(),
			PhoneNumber: result.User.PhoneNumber,
			Role:        string(result.User.Role),
		},
		AccessToken: result.AccessToken,
	}
	if !h.production {
		resp.RefreshToken = result.RefreshToken
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) respondCredentialsError(w http.ResponseWriter, phone string, err error) {
	switch {
	case errors.Is(err, auth.ErrUserAlreadyExists):
		respondWithError(w, http.StatusBadRequest, "user already exists")
	case errors.Is(err, auth.ErrUserNotFound):
		respondWithError(w, http.StatusBadRequest, "user not found")
	case errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, auth.ErrInvalidOtp),
		errors.Is(err, auth.ErrInvalidOrExpiredOtp):
		// One message for credential and OTP failures: do not reveal
		// which check rejected the request.
		respondWithError(w, http.StatusBadRequest, "invalid credentials or code")
	default:
		h.log.WithError(err).WithField("phone", logger.MaskPhone(phone)).Error("authentication failed")
		respondWithError(w, http.StatusBadRequest, "authentication failed")
	}
}

// HandleRefresh handles POST /auth/refresh. The token comes from the body
// or falls back to the cookie.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	rawToken := h.refreshTokenFromRequest(r)
	if rawToken == "" {
		respondWithError(w, http.StatusUnauthorized, "refresh token is required")
		return
	}

	result, err := h.svc.Refresh(r.Context(), rawToken)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshTokenReuseDetected) {
			respondWithError(w, http.StatusUnauthorized, "refresh token reuse detected")
			return
		}
		// Expired, forged and missing all look the same from outside.
		respondWithError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	h.setRefreshCookie(w, result.RefreshToken)
	resp := refreshResponse{AccessToken: result.AccessToken}
	if !h.production {
		resp.RefreshToken = result.RefreshToken
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleLogout handles POST /auth/logout. Both revocations are
// best-effort; the caller always sees {ok:true}.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	accessToken, _ := middleware.BearerToken(r)
	refreshToken := h.refreshTokenFromRequest(r)

	h.svc.Logout(r.Context(), accessToken, refreshToken)

	h.clearRefreshCookie(w)
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleMe handles GET /auth/me (behind the auth middleware).
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]userResponse{
		"user": {
			ID:          user.ID.String(),
			PhoneNumber: user.PhoneNumber,
			Role:        string(user.Role),
		},
	})
}

func (h *AuthHandler) refreshTokenFromRequest(r *http.Request) string {
	var req refreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if token := strings.TrimSpace(req.RefreshToken); token != "" {
		return token
	}
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}

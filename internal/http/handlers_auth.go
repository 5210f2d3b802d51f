package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
	"github.com/healthquiz/quiz-api/internal/service"
)

// maxSecurityLogLimit caps one security-log page.
const maxSecurityLogLimit = 50

// AuthHandlers provides HTTP handlers for account and session operations.
type AuthHandlers struct {
	Svc    *service.AuthService
	Logger *slog.Logger
}

// userPayload is the account shape returned to clients. Session contents stay
// server side; only the count is exposed.
func userPayload(acct *model.Account, suspended bool) map[string]any {
	return map[string]any{
		"username":       acct.Username,
		"email":          acct.Email,
		"subscription":   acct.Subscription,
		"paymentPending": acct.PaymentPending,
		"isSuspended":    suspended,
		"activeSessions": len(acct.ActiveSessions),
	}
}

// Register handles new account creation.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAccountRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	acct, err := h.Svc.Register(r.Context(), &req)
	if err != nil {
		// Duplicate usernames surface as a client error on this route.
		if apperrors.IsConflict(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "conflict", Err: err})
			return
		}
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User registered successfully",
		"user": map[string]any{
			"username": acct.Username,
			"email":    acct.Email,
		},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user and opens a session. Device and location
// anomalies surface as a warning field or a 403 when the account gets
// suspended.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.Login(r.Context(), service.LoginParams{
		Username:  req.Username,
		Password:  req.Password,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	terminated := res.TerminatedSessionIDs
	if terminated == nil {
		terminated = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"message":            res.Message,
		"sessionId":          res.SessionID,
		"warning":            res.Warning,
		"sessionsTerminated": terminated,
		"user":               userPayload(res.Account, false),
	})
}

type sessionRequest struct {
	Username  string `json:"username"`
	SessionID string `json:"sessionId"`
}

// ValidateSession reports whether a session is still live, extending it when
// it is.
func (h *AuthHandlers) ValidateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.SessionID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("username and sessionId are required"),
		})
		return
	}

	res, err := h.Svc.ValidateSession(r.Context(), req.Username, req.SessionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			WriteJSON(w, http.StatusNotFound, map[string]any{
				"valid":   false,
				"message": "User not found",
			})
			return
		}
		WriteAppError(w, err)
		return
	}

	if !res.Valid {
		body := map[string]any{"valid": false, "message": res.Message}
		if res.Suspended {
			body["suspended"] = true
		}
		WriteJSON(w, http.StatusOK, body)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"suspended": false,
		"message":   "Session valid",
		"username":  res.Account.Username,
	})
}

// Logout closes one session. Closing an already-absent session reports
// success; an unknown username is a 404.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.Svc.Logout(r.Context(), req.Username, req.SessionID); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

type logoutOthersRequest struct {
	Username      string `json:"username"`
	KeepSessionID string `json:"keepSessionId"`
}

// LogoutOthers closes every session except the one the caller keeps.
func (h *AuthHandlers) LogoutOthers(w http.ResponseWriter, r *http.Request) {
	var req logoutOthersRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.LogoutOthers(r.Context(), req.Username, req.KeepSessionID, ClientIP(r))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Logged out from other devices",
		"terminated": res.TerminatedCount,
	})
}

// Profile returns the account and subscription status for a username.
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	acct, err := h.Svc.Profile(r.Context(), username)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	user := userPayload(acct, acct.Suspension != nil)
	user["createdAt"] = acct.CreatedAt
	user["maxSessions"] = acct.MaxSessions
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// SecurityLog returns the newest security events for a username.
func (h *AuthHandlers) SecurityLog(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New("username is required"),
		})
		return
	}

	limit := maxSecurityLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "validation",
				Err:     errors.New("limit must be a positive integer"),
			})
			return
		}
		limit = min(parsed, maxSecurityLogLimit)
	}

	events, err := h.Svc.SecurityLog(r.Context(), username, limit)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if events == nil {
		events = []*model.SecurityEvent{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"logs":    events,
	})
}

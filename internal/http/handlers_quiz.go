package httpx

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/healthquiz/quiz-api/internal/errors"
	"github.com/healthquiz/quiz-api/internal/service"
)

const maxQuestionLimit = 50

// QuizHandlers provides HTTP handlers for the question bank.
type QuizHandlers struct {
	Svc  *service.QuizService
	Auth *service.AuthService
}

// Departments lists every quiz department.
func (h *QuizHandlers) Departments(w http.ResponseWriter, _ *http.Request) {
	departments := h.Svc.Departments()
	WriteJSON(w, http.StatusOK, map[string]any{
		"departments": departments,
		"total":       len(departments),
	})
}

// gateSession validates the username/sessionId query credentials when both
// are present. Returns false after writing the error response itself.
func (h *QuizHandlers) gateSession(w http.ResponseWriter, r *http.Request) bool {
	username := r.URL.Query().Get("username")
	sessionID := r.URL.Query().Get("sessionId")
	if username == "" || sessionID == "" {
		return true
	}

	session, err := h.Auth.ValidateSession(r.Context(), username, sessionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			WriteError(w, ErrorParams{
				Code:    http.StatusUnauthorized,
				ErrCode: "unauthorized",
				Err:     errors.New("User not found"),
			})
			return false
		}
		WriteAppError(w, err)
		return false
	}
	if !session.Valid {
		code := http.StatusUnauthorized
		errCode := "unauthorized"
		if session.Suspended {
			code = http.StatusForbidden
			errCode = "forbidden"
		}
		WriteError(w, ErrorParams{Code: code, ErrCode: errCode, Err: errors.New(session.Message)})
		return false
	}
	return true
}

// Questions returns a shuffled question set for one department. Credentials
// are optional, but when presented they must name a live session on a
// non-suspended account.
func (h *QuizHandlers) Questions(w http.ResponseWriter, r *http.Request) {
	department := r.PathValue("department")
	if department == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New("department is required"),
		})
		return
	}

	if !h.gateSession(w, r) {
		return
	}

	limit := 0
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
		limit = min(parsed, maxQuestionLimit)
	}

	questions, err := h.Svc.Questions(department, limit)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"questions": questions,
		"total":     len(questions),
	})
}

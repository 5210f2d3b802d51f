package httpx

import (
	"fmt"
	"net/http"

	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
	"github.com/healthquiz/quiz-api/internal/service"
)

// CodeHandlers provides HTTP handlers for access code redemption and the
// admin code inventory.
type CodeHandlers struct {
	Svc  *service.AccessCodeService
	Auth *service.AuthService
}

type verifyCodeRequest struct {
	Username  string `json:"username"`
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

// Verify redeems an access code against an account, granting its plan.
// Redemption requires a live session on the account.
func (h *CodeHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	valid, err := h.Auth.ValidateSession(r.Context(), req.Username, req.SessionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			WriteError(w, ErrorParams{
				Code:    http.StatusUnauthorized,
				ErrCode: "unauthorized",
				Err:     apperrors.Unauthorized("User not found"),
			})
			return
		}
		WriteAppError(w, err)
		return
	}
	if !valid.Valid {
		code, errCode := http.StatusUnauthorized, "unauthorized"
		if valid.Suspended {
			code, errCode = http.StatusForbidden, "forbidden"
		}
		WriteError(w, ErrorParams{
			Code:    code,
			ErrCode: errCode,
			Err:     fmt.Errorf("%s", valid.Message),
		})
		return
	}

	res, err := h.Svc.Redeem(r.Context(), &model.RedeemCodeRequest{
		Username: req.Username,
		Code:     req.Code,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Code verified! %s-month access unlocked", res.Plan),
		"plan":    res.Plan,
	})
}

type generateCodesRequest struct {
	Count int `json:"count"`
	Plan  int `json:"plan"`
}

// GenerateCodes mints a batch of fresh codes for one plan.
func (h *CodeHandlers) GenerateCodes(w http.ResponseWriter, r *http.Request) {
	var req generateCodesRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	plan := model.Plan(fmt.Sprintf("%d", req.Plan))
	codes, err := h.Svc.MintBatch(r.Context(), req.Count, plan)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d codes generated", len(codes)),
		"codes":   codes,
	})
}

// CodesCount reports the remaining code inventory.
func (h *CodeHandlers) CodesCount(w http.ResponseWriter, r *http.Request) {
	available, total, err := h.Svc.Counts(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"available": available,
		"total":     total,
		"message":   fmt.Sprintf("%d codes available", available),
	})
}

package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/healthquiz/quiz-api/internal/domain/model"
	"github.com/healthquiz/quiz-api/internal/service"
)

// Webhook deliveries are small; anything larger is rejected unread.
const maxWebhookBody = 1 << 20

// PaymentHandlers provides HTTP handlers for gateway payments.
type PaymentHandlers struct {
	Svc    *service.PaymentService
	Logger *slog.Logger
}

// Webhook receives raw gateway webhook deliveries. The gateway retries on
// non-2xx, so processing failures after signature verification are logged and
// acknowledged to avoid endless redelivery of a poison payload.
func (h *PaymentHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_body",
			Err:     errors.New("could not read webhook body"),
		})
		return
	}

	signature := r.Header.Get("X-Paystack-Signature")
	if err := h.Svc.HandleWebhook(r.Context(), signature, body); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type generateCodeRequest struct {
	Plan     model.Plan `json:"plan"`
	Username string     `json:"username"`
}

// GenerateCode mints an access code on demand (admin flow).
func (h *PaymentHandlers) GenerateCode(w http.ResponseWriter, r *http.Request) {
	var req generateCodeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	code, err := h.Svc.GenerateCode(r.Context(), req.Plan, req.Username)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"code": code.Code,
		"plan": code.Plan,
	})
}

// Status reports the processing outcome for a payment reference.
func (h *PaymentHandlers) Status(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")
	if reference == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New("reference is required"),
		})
		return
	}

	payment, err := h.Svc.PaymentStatus(r.Context(), reference)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, payment)
}

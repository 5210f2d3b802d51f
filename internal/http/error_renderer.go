package httpx

import (
	"errors"
	"net/http"

	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// statusForCode maps application error categories to HTTP status codes.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeThrottled:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError renders any service error as JSON. Structured application
// errors keep their category and message; anything else is reported as an
// opaque internal error so internals never leak to clients.
func WriteAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		WriteError(w, ErrorParams{
			Code:    statusForCode(appErr.Code),
			ErrCode: string(appErr.Code),
			Err:     errors.New(appErr.Message),
		})
		return
	}

	WriteError(w, ErrorParams{
		Code:    http.StatusInternalServerError,
		ErrCode: string(apperrors.ErrCodeInternal),
		Err:     errors.New("internal server error"),
	})
}

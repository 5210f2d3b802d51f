package httpx

import (
	"log/slog"
	"net/http"

	"github.com/healthquiz/quiz-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth     *service.AuthService
	Quiz     *service.QuizService
	Codes    *service.AccessCodeService
	Payments *service.PaymentService // Optional: nil disables the payment routes
	AdminKey string
	Logger   *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{Svc: services.Auth, Logger: services.Logger}
	quizHandlers := &QuizHandlers{Svc: services.Quiz, Auth: services.Auth}
	codeHandlers := &CodeHandlers{Svc: services.Codes, Auth: services.Auth}

	mux.HandleFunc("POST /api/register", authHandlers.Register)
	mux.HandleFunc("POST /api/login", authHandlers.Login)
	mux.HandleFunc("POST /api/validate-session", authHandlers.ValidateSession)
	mux.HandleFunc("POST /api/logout", authHandlers.Logout)
	mux.HandleFunc("POST /api/logout-other-devices", authHandlers.LogoutOthers)
	mux.HandleFunc("GET /api/user/{username}", authHandlers.Profile)

	mux.HandleFunc("GET /api/departments", quizHandlers.Departments)
	mux.HandleFunc("GET /api/questions/{department}", quizHandlers.Questions)

	mux.HandleFunc("POST /api/verify-code", codeHandlers.Verify)

	admin := RequireAdminKey(services.AdminKey)
	mux.Handle("GET /api/admin/security-logs/{username}", admin(http.HandlerFunc(authHandlers.SecurityLog)))
	mux.Handle("POST /api/admin/generate-codes", admin(http.HandlerFunc(codeHandlers.GenerateCodes)))
	mux.Handle("GET /api/admin/codes-count", admin(http.HandlerFunc(codeHandlers.CodesCount)))

	if services.Payments != nil {
		paymentHandlers := &PaymentHandlers{Svc: services.Payments, Logger: services.Logger}
		mux.HandleFunc("POST /api/paystack/webhook", paymentHandlers.Webhook)
		mux.HandleFunc("GET /api/paystack/status/{reference}", paymentHandlers.Status)
		mux.Handle("POST /api/paystack/generate-code", admin(http.HandlerFunc(paymentHandlers.GenerateCode)))
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	if services.Logger != nil {
		handler = Logging(services.Logger)(handler)
		handler = Recover(services.Logger)(handler)
	}
	return handler
}

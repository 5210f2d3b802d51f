// Package mocks provides generated mock implementations for testing services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the side-effecting ports in internal/core. The mocks are generated using
// go:generate directives and provide a fluent API for setting up test
// expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	throttle := mocks.NewMockLoginThrottle(ctrl)
//	throttle.EXPECT().Allow(gomock.Any(), "1.2.3.4:alice").Return(true, nil)
package mocks

// Generate mock for LoginThrottle interface from internal/core package.
// This creates MockLoginThrottle with methods for all LoginThrottle interface methods:
// Allow, RecordFailure, Reset
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=login_throttle_mock.go github.com/healthquiz/quiz-api/internal/core LoginThrottle

// Generate mock for Mailer interface from internal/core package.
// This creates MockMailer with methods for all Mailer interface methods:
// SendAccessCode
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=mailer_mock.go github.com/healthquiz/quiz-api/internal/core Mailer

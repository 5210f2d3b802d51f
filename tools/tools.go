//go:build tools
// +build tools

// Package tools documents development tool dependencies. These are installed
// with `go install` and are not runtime dependencies, so they stay out of the
// main go.mod require block.
package tools

// Development tools (install via `go install`):
//
// Air - live reload during local development
//   Install: go install github.com/air-verse/air@v1.63.0
//
// mockgen - regenerates the mocks in internal/mocks
//   Invoked via `go generate ./internal/mocks`, pinned to go.uber.org/mock v0.6.0

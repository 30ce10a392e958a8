//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` or run with `go run pkg@version`
// and are not tracked in go.mod since they are development tools, not runtime dependencies.
package tools

// Development tools:
//
// mockgen - Generates internal/mocks from internal/ports
//   Run: go generate ./internal/mocks
//   Version: v0.6.0 (pinned in internal/mocks/generate.go)
//   Docs: https://github.com/uber-go/mock
//
// golangci-lint - Lint runner
//   Install: go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@v2.4.0
//   Docs: https://golangci-lint.run

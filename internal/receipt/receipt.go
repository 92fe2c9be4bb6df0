// Package receipt verifies untrusted payment-source payloads. Validators are
// pure I/O-bound checks: they never mutate persisted state, and every
// transport error, timeout or domain rejection is folded into a
// ValidationResult with Valid set to false.
package receipt

import (
	"context"

	"github.com/recipebook/recipebook-server/domain"
)

// Validator turns an opaque provider payload into a normalized
// ValidationResult, or fails closed.
type Validator interface {
	Validate(ctx context.Context, receipt, productID string) *domain.ValidationResult
}

func invalid(reason string) *domain.ValidationResult {
	return &domain.ValidationResult{Valid: false, Error: reason}
}

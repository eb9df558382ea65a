// Package repositories exposes the read side of the fortune service's
// runtime dependencies.
package repositories

import (
	"context"

	domain "github.com/hanko-field/fortune/internal/domain"
)

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

package results

import (
	"context"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// Store archives finished sessions. SaveSummary is idempotent per session id.
type Store interface {
	SaveSummary(ctx context.Context, s domain.Summary) error
	Recent(ctx context.Context, participantID string, limit int) ([]domain.Summary, error)
	Close() error
}

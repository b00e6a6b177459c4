package registry

import (
	"context"
	"errors"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// Store holds the pool of perpetual rooms. Every method is a single atomic
// step; callers never write room fields directly.
type Store interface {
	List(ctx context.Context) ([]domain.Room, error)
	Get(ctx context.Context, roomID string) (domain.Room, error)
	// Create adds a room for the tier, hosted by node, with the caller already
	// seated, unless the tier holds maxPerTier rooms.
	Create(ctx context.Context, d domain.Difficulty, capacity, maxPerTier int, node string) (domain.Room, error)
	// Reserve takes one seat if the room is open and not full.
	Reserve(ctx context.Context, roomID string) (domain.Room, error)
	// Release frees one seat of the given generation.
	Release(ctx context.Context, roomID string, generation uint64) (domain.Room, error)
	MarkInGame(ctx context.Context, roomID string, generation uint64) (domain.Room, error)
	// Reset empties the room, reopens it and starts the next generation.
	Reset(ctx context.Context, roomID string, generation uint64) (domain.Room, error)
}

// Store errors
var (
	ErrUnknownRoom        = errors.New("room not found")
	ErrNoSeat             = errors.New("room has no free seat")
	ErrTierExhausted      = errors.New("room limit reached for tier")
	ErrGenerationMismatch = errors.New("room generation changed")
	ErrContention         = errors.New("room update contended, retries exhausted")
)

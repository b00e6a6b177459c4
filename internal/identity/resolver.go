package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// Resolver turns a client credential into an identity.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (domain.Identity, error)
}

// GuestResolver hands out throwaway identities. The credential is taken as
// the display name.
type GuestResolver struct{}

func (GuestResolver) Resolve(ctx context.Context, credential string) (domain.Identity, error) {
	id := "guest-" + uuid.NewString()
	name := strings.TrimSpace(credential)
	if name == "" {
		name = "Guest-" + id[6:12]
	}
	if len(name) > 32 {
		name = name[:32]
	}
	return domain.Identity{ID: id, Name: name}, nil
}

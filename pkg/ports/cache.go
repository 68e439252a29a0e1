package ports

import (
	"context"

	"github.com/aretw0/xplanning/pkg/policy"
)

// ResultCache stores evaluated policies so repeated explanations of the same
// model skip the oracle. Cached infos come back without their Policy; callers
// reattach it.
type ResultCache interface {
	// Get returns the info stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*policy.Info, error)

	// Put stores info under key, replacing any previous entry.
	Put(ctx context.Context, key string, info *policy.Info) error

	// Delete removes the entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

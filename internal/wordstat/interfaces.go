package wordstat

import (
	"context"
	"time"
)

// Gateway performs single logical Wordstat API operations.
type Gateway interface {
	TopRequests(ctx context.Context, phrase string, regions []int64, devices []string) (TopResult, error)
	Dynamics(ctx context.Context, query DynamicsQuery) (DynamicsResult, error)
	RegionsTree(ctx context.Context) ([]RegionNode, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Hasher computes digests for blob naming/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Publisher pushes run-summary events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

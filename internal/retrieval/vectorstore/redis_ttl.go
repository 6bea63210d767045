package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTTLRegistry tracks ephemeral-collection expirations in a Redis
// sorted set, scored by Unix expiry time. List returns every registration
// in expiry order; the Reaper (C17) decides which ones are due. Grounded on the go-redis client usage pattern in
// the cache layer of the reference pack.
type RedisTTLRegistry struct {
	client *redis.Client
	key    string
}

// NewRedisTTLRegistry constructs a registry backed by client, storing
// entries under a single sorted-set key.
func NewRedisTTLRegistry(client *redis.Client, key string) *RedisTTLRegistry {
	if key == "" {
		key = "idp:ephemeral-collections"
	}
	return &RedisTTLRegistry{client: client, key: key}
}

func (r *RedisTTLRegistry) Register(ctx context.Context, collection string, expiresAt time.Time) error {
	err := r.client.ZAdd(ctx, r.key, redis.Z{
		Score:  float64(expiresAt.Unix()),
		Member: collection,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to register ephemeral collection %s: %w", collection, err)
	}
	return nil
}

func (r *RedisTTLRegistry) Remove(ctx context.Context, collection string) error {
	if err := r.client.ZRem(ctx, r.key, collection).Err(); err != nil {
		return fmt.Errorf("failed to remove ephemeral collection %s: %w", collection, err)
	}
	return nil
}

func (r *RedisTTLRegistry) List(ctx context.Context) ([]Registration, error) {
	results, err := r.client.ZRangeWithScores(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ephemeral collections: %w", err)
	}

	out := make([]Registration, 0, len(results))
	for _, z := range results {
		name, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, Registration{
			Collection: name,
			ExpiresAt:  time.Unix(int64(z.Score), 0),
		})
	}
	return out, nil
}

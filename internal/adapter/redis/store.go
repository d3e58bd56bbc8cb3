// Package redis shares resolved boundary geometries between engine replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/couchcryptid/heat-insight-engine/internal/boundary"
)

const keyPrefix = "heat-insight:boundary:"

var _ boundary.Store = (*Store)(nil)

// Store implements boundary.Store on Redis. Geometries are stored as GeoJSON.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewClient opens a Redis client for addr.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr})
}

// NewStore wraps client. A zero ttl keeps entries until evicted by Redis.
func NewStore(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Get returns the stored geometry for name. found is false on a miss.
func (s *Store) Get(ctx context.Context, name string) (boundary.Geometry, bool, error) {
	data, err := s.client.Get(ctx, key(name)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return boundary.Geometry{}, false, nil
	}
	if err != nil {
		return boundary.Geometry{}, false, fmt.Errorf("redis get: %w", err)
	}

	var g boundary.Geometry
	if err := json.Unmarshal(data, &g); err != nil {
		return boundary.Geometry{}, false, fmt.Errorf("decode stored geometry %s: %w", name, err)
	}
	return g, true, nil
}

// Put stores g under name.
func (s *Store) Put(ctx context.Context, name string, g boundary.Geometry) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode geometry %s: %w", name, err)
	}
	if err := s.client.Set(ctx, key(name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity. It backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func key(name string) string { return keyPrefix + name }

package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const matrixKey = "rbac:permission-matrix"

// DefaultFactTTL bounds the staleness of per-principal cached facts.
const DefaultFactTTL = 60 * time.Second

// FactCache stores derived authorization facts in Redis: short-lived
// role and permission lists keyed per principal, and the global
// permission matrix, which has no TTL and lives until the next rebuild
// overwrites it.
//
// Read failures are treated as cache misses: caching is a performance
// optimization, never a correctness dependency. Deletion failures are
// surfaced because under-invalidation would leave stale facts readable
// for a full TTL.
type FactCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewFactCache instantiates the cache helper. A zero ttl falls back to
// DefaultFactTTL.
func NewFactCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *FactCache {
	if ttl <= 0 {
		ttl = DefaultFactTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FactCache{client: client, ttl: ttl, logger: logger}
}

// TTL exposes the configured fact lifetime.
func (c *FactCache) TTL() time.Duration {
	return c.ttl
}

// Roles returns the cached role list for a principal, if present.
func (c *FactCache) Roles(ctx context.Context, t PrincipalType, principalID int64) ([]RoleRef, bool) {
	var refs []RoleRef
	if !c.fetch(ctx, roleListKey(t, principalID), &refs) {
		return nil, false
	}
	return refs, true
}

// StoreRoles caches the full role list for a principal.
func (c *FactCache) StoreRoles(ctx context.Context, t PrincipalType, principalID int64, refs []RoleRef) {
	c.store(ctx, roleListKey(t, principalID), refs, c.ttl)
}

// PermissionNames returns the cached permission list for a principal, if present.
func (c *FactCache) PermissionNames(ctx context.Context, t PrincipalType, principalID int64) ([]string, bool) {
	var names []string
	if !c.fetch(ctx, permissionListKey(t, principalID), &names) {
		return nil, false
	}
	return names, true
}

// StorePermissionNames caches the flattened permission list for a principal.
func (c *FactCache) StorePermissionNames(ctx context.Context, t PrincipalType, principalID int64, names []string) {
	c.store(ctx, permissionListKey(t, principalID), names, c.ttl)
}

// Invalidate deletes both fact entries for a principal. Over-invalidation
// is harmless; the next read repopulates from the graph store.
func (c *FactCache) Invalidate(ctx context.Context, t PrincipalType, principalID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, roleListKey(t, principalID), permissionListKey(t, principalID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Matrix returns the cached permission matrix, if present.
func (c *FactCache) Matrix(ctx context.Context) (Matrix, bool) {
	var m Matrix
	if !c.fetch(ctx, matrixKey, &m) {
		return nil, false
	}
	return m, true
}

// StoreMatrix overwrites the cached matrix wholesale. No TTL: the entry
// is authoritative until the next rebuild replaces it.
func (c *FactCache) StoreMatrix(ctx context.Context, m Matrix) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, matrixKey, raw, 0).Err()
}

func (c *FactCache) fetch(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("fact cache read", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("fact cache decode", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (c *FactCache) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("fact cache encode", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("fact cache write", slog.String("key", key), slog.Any("error", err))
	}
}

func roleListKey(t PrincipalType, principalID int64) string {
	return fmt.Sprintf("rbac:%s:%d:roles", t, principalID)
}

func permissionListKey(t PrincipalType, principalID int64) string {
	return fmt.Sprintf("rbac:%s:%d:permissions", t, principalID)
}

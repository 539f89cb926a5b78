// Package cache holds encoded responses for read-only endpoints. The
// dataset never changes after load, so entries stay valid for the life of
// the process.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a cache key from an endpoint and its parameters
func Key(endpoint string, params ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(append([]string{endpoint}, params...), "\x00")))
	return "incidentlens:v1:" + endpoint + ":" + hex.EncodeToString(hash[:8])
}

// Fetch returns the cached value for key, computing and storing it with
// fill on a miss. Failed fills are not cached. hit reports a cache hit.
func Fetch(c Cache, key string, ttl time.Duration, fill func() ([]byte, error)) (value []byte, hit bool, err error) {
	if c != nil {
		if v, ok := c.Get(key); ok {
			return v, true, nil
		}
	}

	value, err = fill()
	if err != nil {
		return nil, false, err
	}
	if c != nil {
		_ = c.Set(key, value, ttl)
	}
	return value, false, nil
}

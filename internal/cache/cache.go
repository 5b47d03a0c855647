package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte-oriented key/value cache with per-entry expiry
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// WorkKey returns the cache key holding a work's claim list. The work id is
// hashed so it is safe as a file name for the disk layer.
func WorkKey(workID string) string {
	hash := sha256.Sum256([]byte("work-claims:" + workID))
	return "akita:v1:" + hex.EncodeToString(hash[:])
}

package cache

import "time"

// Cache stores opaque values by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key namespaces a key so entries from different versions never collide.
func Key(kind, key string) string {
	return "travel:v1:" + kind + ":" + key
}

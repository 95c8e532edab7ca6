package cache

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/values-tools/moral/provider"
)

// Store is a provider.Cache that holds resources.
type Store interface {
	provider.Cache
	io.Closer
}

// Open builds a cache from a location of the form "sqlite:<path>", "redis:<addr>", "memory" or
// "none". "none" and "" return a nil Store, which disables caching.
func Open(ctx context.Context, location string, ttl time.Duration) (Store, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(location), ":")
	switch strings.ToLower(kind) {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		if arg == "" {
			return nil, fmt.Errorf("cache.Open: sqlite cache needs a path (sqlite:<path>)")
		}
		s, err := OpenSQLite(arg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		if arg == "" {
			return nil, fmt.Errorf("cache.Open: redis cache needs an address (redis:<host:port>)")
		}
		r, err := DialRedis(ctx, arg, ttl)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("cache.Open: unknown cache kind %q", kind)
	}
}

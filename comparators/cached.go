package comparators

import (
	"context"

	json "github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/reoring/structgrade"
)

// Cached memoizes a pure comparator behind a size-bounded LRU, which pays off
// when an expensive comparator (for example a network-backed semantic one)
// sees the same value pairs across list alignment matrices or documents.
// The wrapper is only sound for comparators that are deterministic in their
// inputs; errors are never cached.
func Cached(inner structgrade.Comparator, size int) (structgrade.Comparator, error) {
	c, err := lru.New[string, float64](size)
	if err != nil {
		return nil, err
	}
	return &cachedComparator{inner: inner, cache: c}, nil
}

// MustCached is Cached that panics on an invalid size. Intended for
// package-level comparator registration.
func MustCached(inner structgrade.Comparator, size int) structgrade.Comparator {
	c, err := Cached(inner, size)
	if err != nil {
		panic(err)
	}
	return c
}

type cachedComparator struct {
	inner structgrade.Comparator
	cache *lru.Cache[string, float64]
}

func (c *cachedComparator) Compare(ctx context.Context, a, b any) (float64, error) {
	key, ok := cacheKey(a, b)
	if !ok {
		return c.inner.Compare(ctx, a, b)
	}
	if s, hit := c.cache.Get(key); hit {
		return s, nil
	}
	s, err := c.inner.Compare(ctx, a, b)
	if err != nil {
		return 0, err
	}
	c.cache.Add(key, s)
	return s, nil
}

// cacheKey derives a stable key from the JSON renderings of both values.
// Unencodable values bypass the cache.
func cacheKey(a, b any) (string, bool) {
	ka, err := json.Marshal(a)
	if err != nil {
		return "", false
	}
	kb, err := json.Marshal(b)
	if err != nil {
		return "", false
	}
	return string(ka) + "\x00" + string(kb), true
}

package codec

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Digester memoizes digests and collapses concurrent requests for the same
// input into a single computation. Hashing is cheap, but daemon clients tend
// to re-hash the same payloads in bursts.
type Digester struct {
	mu      sync.RWMutex
	cache   map[string]string
	maxSize int
	group   singleflight.Group
}

const defaultDigestCacheSize = 1024

func NewDigester(maxSize int) *Digester {
	if maxSize <= 0 {
		maxSize = defaultDigestCacheSize
	}
	return &Digester{
		cache:   make(map[string]string),
		maxSize: maxSize,
	}
}

// Digest returns the SHA-256 hex digest of data, serving repeats from cache.
func (d *Digester) Digest(data []byte) string {
	key := string(data)

	d.mu.RLock()
	if digest, ok := d.cache[key]; ok {
		d.mu.RUnlock()
		return digest
	}
	d.mu.RUnlock()

	v, _, _ := d.group.Do(key, func() (any, error) {
		digest := Hash(data)
		d.store(key, digest)
		return digest, nil
	})
	return v.(string)
}

// DigestString digests the UTF-8 bytes of s.
func (d *Digester) DigestString(s string) string {
	return d.Digest([]byte(s))
}

// Len reports the number of cached digests.
func (d *Digester) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.cache)
}

func (d *Digester) store(key, digest string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Full cache: drop everything rather than track recency. Digests are
	// recomputable and the cache exists only to absorb bursts.
	if len(d.cache) >= d.maxSize {
		d.cache = make(map[string]string)
	}
	d.cache[key] = digest
}

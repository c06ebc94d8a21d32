package transfer

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache keeps compressed payloads keyed by the checksum of the data they were
// built from, so a retried send of the same file skips compression.
type Cache struct {
	cacheInstance *gocache.Cache
}

type cachedPayload struct {
	size    int
	payload []byte
}

// NewCache returns a Cache whose entries expire after ttl. A ttl of -1 keeps
// entries until they are deleted.
func NewCache(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{cacheInstance: gocache.New(ttl, cleanupInterval)}
}

// Put stores a copy of the payload compressed from size bytes with the given
// checksum.
func (c *Cache) Put(checksum uint64, size int, payload []byte) {
	stored := append([]byte(nil), payload...)
	c.cacheInstance.SetDefault(cacheKey(checksum), cachedPayload{size: size, payload: stored})
}

// Get returns a copy of the payload stored for checksum if it was built from
// size bytes.
func (c *Cache) Get(checksum uint64, size int) ([]byte, bool) {
	v, found := c.cacheInstance.Get(cacheKey(checksum))
	if !found {
		return nil, false
	}
	entry := v.(cachedPayload)
	if entry.size != size {
		return nil, false
	}
	return append([]byte(nil), entry.payload...), true
}

// Len returns the number of cached payloads, including expired ones that
// have not been cleaned up yet.
func (c *Cache) Len() int {
	return c.cacheInstance.ItemCount()
}

func cacheKey(checksum uint64) string {
	return strconv.FormatUint(checksum, 16)
}

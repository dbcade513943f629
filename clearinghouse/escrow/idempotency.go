package escrow

import (
	"github.com/patrickmn/go-cache"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/prysmaticlabs/clearinghouse/shared/params"
)

// IdempotencyGuard deduplicates client-supplied operation keys. Entries
// expire after the configured TTL, bounding memory over long uptimes.
type IdempotencyGuard struct {
	entries *cache.Cache
}

// NewIdempotencyGuard creates a guard with the configured TTL.
func NewIdempotencyGuard() *IdempotencyGuard {
	ttl := params.ClearinghouseConfig().IdempotencyTTL
	return &IdempotencyGuard{
		entries: cache.New(ttl, ttl),
	}
}

// Check returns a DuplicateOperationError carrying the original result when
// the key has been seen within the TTL. An empty key disables the check.
func (g *IdempotencyGuard) Check(key string) error {
	if key == "" {
		return nil
	}
	if result, found := g.entries.Get(key); found {
		duplicateOperationsTotal.Inc()
		return &types.DuplicateOperationError{Key: key, Result: result}
	}
	return nil
}

// Record stores the outcome of a completed operation under its key. Failed
// operations are not recorded so callers may retry with the same key.
func (g *IdempotencyGuard) Record(key string, result interface{}) {
	if key == "" {
		return
	}
	g.entries.SetDefault(key, result)
}

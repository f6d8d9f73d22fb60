package assessment

import (
	"context"
	"sync"

	"github.com/carebridge-health/promis-gateway/internal/promis"
)

// formCache is a read-through cache of form-detail documents keyed by OID.
// Forms are immutable reference data, so entries are never invalidated.
type formCache struct {
	mu       sync.Mutex
	provider Provider
	details  map[string]promis.FormDetail
}

func newFormCache(p Provider) *formCache {
	return &formCache{provider: p, details: make(map[string]promis.FormDetail)}
}

func (c *formCache) get(ctx context.Context, formOID string) (promis.FormDetail, error) {
	c.mu.Lock()
	d, ok := c.details[formOID]
	c.mu.Unlock()
	if ok {
		return d, nil
	}
	d, err := c.provider.FormDetails(ctx, formOID)
	if err != nil {
		return promis.FormDetail{}, err
	}
	c.mu.Lock()
	c.details[formOID] = d
	c.mu.Unlock()
	return d, nil
}

package cache

import (
	"context"
	"slices"
	"time"

	"bartab/internal/core"
	"bartab/internal/ports"
)

const maxCachedItems = 1024

// Catalog serves catalog lookups from a short-lived snapshot. Catalog edits
// become visible after at most ttl; misses and errors are never cached.
type Catalog struct {
	inner ports.CatalogReader
	items *LRUCache[int64, core.Item]
	tiers *LRUCache[struct{}, []core.SurchargeTier]
}

var _ ports.CatalogReader = (*Catalog)(nil)

func NewCatalog(inner ports.CatalogReader, ttl time.Duration) *Catalog {
	return &Catalog{
		inner: inner,
		items: NewLRUCache[int64, core.Item](maxCachedItems, ttl),
		tiers: NewLRUCache[struct{}, []core.SurchargeTier](1, ttl),
	}
}

func (c *Catalog) Item(ctx context.Context, id int64) (core.Item, error) {
	if it, ok := c.items.Get(id); ok {
		return it, nil
	}
	it, err := c.inner.Item(ctx, id)
	if err != nil {
		return core.Item{}, err
	}
	c.items.Set(id, it)
	return it, nil
}

func (c *Catalog) ActiveTiers(ctx context.Context) ([]core.SurchargeTier, error) {
	if tiers, ok := c.tiers.Get(struct{}{}); ok {
		return slices.Clone(tiers), nil
	}
	tiers, err := c.inner.ActiveTiers(ctx)
	if err != nil {
		return nil, err
	}
	c.tiers.Set(struct{}{}, slices.Clone(tiers))
	return tiers, nil
}

// Invalidate drops the snapshot. Seeding calls it after writing the catalog.
func (c *Catalog) Invalidate() {
	c.items.Purge()
	c.tiers.Purge()
}

// Register adds the underlying caches to m for periodic cleanup.
func (c *Catalog) Register(m *Manager) {
	m.Register(c.items)
	m.Register(c.tiers)
}

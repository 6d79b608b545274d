package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// SchemaCache lazily fetches and caches collection schemas. A schema
// is fetched once per collection and reused until invalidated. The
// fetch is all-or-nothing: invalidation drops the whole collection's
// entries, never a single property.
type SchemaCache struct {
	client Client
	logger *slog.Logger

	mu      sync.RWMutex
	schemas map[string][]SchemaEntry
}

// NewSchemaCache creates a SchemaCache backed by the given client.
func NewSchemaCache(client Client, logger *slog.Logger) *SchemaCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaCache{
		client:  client,
		logger:  logger,
		schemas: make(map[string][]SchemaEntry),
	}
}

// Get returns the schema for a collection, fetching it on first use.
func (c *SchemaCache) Get(ctx context.Context, collectionID string) ([]SchemaEntry, error) {
	c.mu.RLock()
	cached, ok := c.schemas[collectionID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	entries, err := c.client.GetSchema(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("fetch schema for %s: %w", collectionID, err)
	}

	c.mu.Lock()
	c.schemas[collectionID] = entries
	c.mu.Unlock()

	c.logger.Debug("schema cached",
		"collection_id", collectionID,
		"properties", len(entries))
	return entries, nil
}

// Entry returns the schema entry for one property of a collection.
// The second return is false when the collection has no such property.
func (c *SchemaCache) Entry(ctx context.Context, collectionID, property string) (SchemaEntry, bool, error) {
	entries, err := c.Get(ctx, collectionID)
	if err != nil {
		return SchemaEntry{}, false, err
	}
	for _, e := range entries {
		if e.Name == property {
			return e, true, nil
		}
	}
	return SchemaEntry{}, false, nil
}

// Invalidate drops every cached entry for a collection. The next Get
// triggers a full refetch.
func (c *SchemaCache) Invalidate(collectionID string) {
	c.mu.Lock()
	delete(c.schemas, collectionID)
	c.mu.Unlock()
	c.logger.Debug("schema cache invalidated", "collection_id", collectionID)
}

package config

import (
	"fmt"
	"sync"

	"github.com/planterhq/planter/internal/schema"
)

// osProvider is the provider interface for operating system functions.
type osProvider interface {
	ReadFile(name string) ([]byte, error)
}

// SchemaCache parses each schema file at most once and hands out the
// same root node for every later request of the same path.
type SchemaCache struct {
	mu        sync.Mutex
	osHandler osProvider
	parsed    map[string]*schema.Node
}

// NewSchemaCache returns a [SchemaCache] reading files through the
// given provider.
func NewSchemaCache(osHandler osProvider) *SchemaCache {
	return &SchemaCache{
		osHandler: osHandler,
		parsed:    make(map[string]*schema.Node),
	}
}

// Load returns the parsed schema for a file path, reading and parsing
// it on first use. Parse failures are not cached, so a corrected file
// is picked up on the next call.
func (c *SchemaCache) Load(path string) (*schema.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.parsed[path]; exists {
		return node, nil
	}

	data, err := c.osHandler.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("(config) failed to read schema %q: %w", path, err)
	}

	node, err := schema.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("(config) failed to parse schema %q: %w", path, err)
	}

	c.parsed[path] = node

	return node, nil
}

// Inject stores an already parsed schema under a path, bypassing the
// file read on later loads.
func (c *SchemaCache) Inject(path string, node *schema.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.parsed[path] = node
}

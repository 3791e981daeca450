package config

import (
	"os"
	"testing"

	"github.com/planterhq/planter/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSchemaCacheLoad_Success tests that a schema file is read and
// parsed exactly once, with later loads returning the same node.
func TestSchemaCacheLoad_Success(t *testing.T) {
	t.Parallel()

	osHandler := newFakeOS()
	osHandler.files["/etc/main.schema"] = []byte("docs/\n    :owner admin\n")

	cache := NewSchemaCache(osHandler)

	first, err := cache.Load("/etc/main.schema")
	require.NoError(t, err)
	require.True(t, first.IsDirectory())

	second, err := cache.Load("/etc/main.schema")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, osHandler.reads["/etc/main.schema"])
}

// TestSchemaCacheLoad_Error tests read and parse failures, and that
// failures are retried instead of cached.
func TestSchemaCacheLoad_Error(t *testing.T) {
	t.Parallel()

	osHandler := newFakeOS()
	osHandler.files["/etc/broken.schema"] = []byte("\tdocs/\n")

	cache := NewSchemaCache(osHandler)

	_, err := cache.Load("/etc/missing.schema")
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorContains(t, err, "failed to read schema")

	_, err = cache.Load("/etc/broken.schema")
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to parse schema")

	var parseErr *schema.ParseError
	require.ErrorAs(t, err, &parseErr)

	_, err = cache.Load("/etc/broken.schema")
	require.Error(t, err)
	assert.Equal(t, 2, osHandler.reads["/etc/broken.schema"])
}

// TestSchemaCacheInject_Success tests that injected schemas are served
// without touching the provider.
func TestSchemaCacheInject_Success(t *testing.T) {
	t.Parallel()

	parsed, err := schema.Parse("docs/\n")
	require.NoError(t, err)

	osHandler := newFakeOS()
	cache := NewSchemaCache(osHandler)
	cache.Inject("/etc/main.schema", parsed)

	node, err := cache.Load("/etc/main.schema")
	require.NoError(t, err)

	assert.Same(t, parsed, node)
	assert.Empty(t, osHandler.reads)
}

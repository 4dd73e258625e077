package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyURLReturnsNilPool(t *testing.T) {
	pool, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, pool)

	// nil pools are safe to probe and close
	assert.Error(t, pool.Health(context.Background()))
	assert.NoError(t, pool.Close())
}

func TestMigrate_SkipsNonUpFiles(t *testing.T) {
	// With only non-migration files present nothing touches the (nil) database.
	err := Migrate(context.Background(), nil, fstest.MapFS{
		"README.md":                {Data: []byte("notes")},
		"001_credentials.down.sql": {Data: []byte("DROP TABLE credential_metadata;")},
	})
	assert.NoError(t, err)
}

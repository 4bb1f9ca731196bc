package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plugintree/internal/config"
)

func TestOpen_Drivers(t *testing.T) {
	store, err := Open(context.Background(), config.LedgerConfig{Driver: "memory", Capacity: 4})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	dsn := filepath.Join(t.TempDir(), "ledger.db")
	store, err = Open(context.Background(), config.LedgerConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	assert.IsType(t, &SQLStore{}, store)

	_, err = Open(context.Background(), config.LedgerConfig{Driver: "oracle"})
	assert.Error(t, err)
}

package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationSlug(t *testing.T) {
	assert.Equal(t, "add_orders_index", migrationSlug("  Add Orders-Index! "))
	assert.Equal(t, "carts_v2", migrationSlug("carts__v2"))
	assert.Empty(t, migrationSlug("!!!"))
}

func TestCreateAtRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 7, 1, 12, 30, 0, 0, time.UTC)

	path, err := createAt(dir, "restock index", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260701123000_restock_index.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- +goose Down")

	_, err = createAt(dir, "restock index", at)
	assert.ErrorContains(t, err, "already exists")
}

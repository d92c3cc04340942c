package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
)

func TestFS_UpMigrationsInOrder(t *testing.T) {
	names, err := database.MigrationFiles(FS)
	require.NoError(t, err)
	require.Len(t, names, 5)
	assert.Equal(t, "000001_create_catalog_items.up.sql", names[0])
	assert.Equal(t, "000005_create_favorites_subscribers.up.sql", names[4])
}

func TestFS_CompletedPaymentIsUnique(t *testing.T) {
	sql, err := fs.ReadFile(FS, "000003_create_payments.up.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(sql), "payments_one_completed_per_order"))
	assert.Contains(t, string(sql), "WHERE status = 'completed'")
}

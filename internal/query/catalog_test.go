package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog(map[string]string{
		"orders-by-status": "  SELECT O_ORDERSTATUS, COUNT(*) FROM ORDERS GROUP BY 1 \n",
		"current_database": "SELECT CURRENT_DATABASE()",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"current_database", "orders-by-status"}, c.Names())

	sql, err := c.Lookup("orders-by-status")
	require.NoError(t, err)
	assert.Equal(t, "SELECT O_ORDERSTATUS, COUNT(*) FROM ORDERS GROUP BY 1", sql)
}

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name    string
		queries map[string]string
	}{
		{"upper case name", map[string]string{"Orders": "SELECT 1"}},
		{"name with spaces", map[string]string{"my query": "SELECT 1"}},
		{"path traversal", map[string]string{"../etc": "SELECT 1"}},
		{"empty name", map[string]string{"": "SELECT 1"}},
		{"empty sql", map[string]string{"orders": "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.queries)
			require.ErrorIs(t, err, sfdash.ErrInvalidConfig)
		})
	}
}

func TestCatalog_LookupMissing(t *testing.T) {
	c, err := NewCatalog(nil)
	require.NoError(t, err)

	_, err = c.Lookup("nope")
	require.ErrorIs(t, err, sfdash.ErrQueryNotFound)
	assert.Empty(t, c.Names())
}

func TestCatalog_NilIsEmpty(t *testing.T) {
	var c *Catalog

	_, err := c.Lookup("orders")
	require.ErrorIs(t, err, sfdash.ErrQueryNotFound)
	assert.Equal(t, []string{}, c.Names())
	assert.Zero(t, c.Len())
}

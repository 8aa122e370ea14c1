package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/deltah/internal/storage"
	"github.com/chrissnell/deltah/pkg/lookup"
)

func TestModelTableNames(t *testing.T) {
	assert.Equal(t, "lookup_tables", TableRecord{}.TableName())
	assert.Equal(t, "lookup_cells", CellRecord{}.TableName())
}

// Needs a scratch database, e.g.
// DELTAH_TEST_POSTGRES="host=localhost user=postgres dbname=deltah_test sslmode=disable"
func TestStoreAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("DELTAH_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("DELTAH_TEST_POSTGRES not set")
	}

	s, err := Open(dsn, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	tbl, err := lookup.FromRows([]int{1, 2},
		[][]float64{{1e6, 5e5}, {6e5, 5e5}, {0, 0}},
		[][]float64{{1e7, 2.5e6}, {3.75e6, 2.5e6}, {0, 0}},
	)
	require.NoError(t, err)

	name := "pg-test-" + t.Name()
	runID, err := s.SaveTable(ctx, name, tbl)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	got, err := s.LoadTable(ctx, name)
	require.NoError(t, err)
	assert.True(t, got.Equal(tbl, 0))

	_, err = s.LoadTable(ctx, "pg-test-missing")
	assert.True(t, errors.Is(err, storage.ErrTableNotFound))
}

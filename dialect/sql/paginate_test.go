package sql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPaginate tests counted pagination: totals, page clamping and the
// ceiling last page.
func TestPaginate(t *testing.T) {
	drv := sqliteDriver(t, 23)
	ctx := context.Background()

	page, err := drv.Table("users").OrderBy("id").Paginate(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(23), page.Total)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.LastPage)
	require.Len(t, page.Data, 10)
	assert.Equal(t, int64(11), page.Data[0]["id"])

	// The last page is short.
	page, err = drv.Table("users").OrderBy("id").Paginate(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 3)

	// Page values below 1 clamp to the first page.
	page, err = drv.Table("users").OrderBy("id").Paginate(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, int64(1), page.Data[0]["id"])
}

// TestPaginateEmpty tests that an empty result still reports one page.
func TestPaginateEmpty(t *testing.T) {
	drv := sqliteDriver(t, 0)
	page, err := drv.Table("users").OrderBy("id").Paginate(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.Equal(t, 1, page.LastPage)
	assert.Empty(t, page.Data)
}

// TestPaginateFiltered tests that the count respects the query's
// predicates.
func TestPaginateFiltered(t *testing.T) {
	drv := sqliteDriver(t, 10)
	page, err := drv.Table("users").Where("active", 1).OrderBy("id").Paginate(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 2, page.LastPage)
	require.Len(t, page.Data, 3)
}

// TestSimplePaginate tests the probe-one-extra-row strategy.
func TestSimplePaginate(t *testing.T) {
	drv := sqliteDriver(t, 7)
	ctx := context.Background()

	page, err := drv.Table("users").OrderBy("id").SimplePaginate(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, page.Data, 5)
	assert.True(t, page.HasMore)

	page, err = drv.Table("users").OrderBy("id").SimplePaginate(ctx, 2, 5)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.False(t, page.HasMore)
}

// TestPaginateInvalidSize tests the page size validation.
func TestPaginateInvalidSize(t *testing.T) {
	drv := sqliteDriver(t, 1)
	_, err := drv.Table("users").Paginate(context.Background(), 1, 0)
	require.Error(t, err)
	assert.True(t, IsInvalidPredicate(err))
}

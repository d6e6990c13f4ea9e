package sqlstore

import (
	"context"
	"math"
	"testing"

	"coinsleuth/adapters/stats/runlength"
	"coinsleuth/domain/core"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
	"coinsleuth/internal/config"
	"coinsleuth/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.TableRepository = (*Repository)(nil)

func openTestRepository(t *testing.T) *Repository {
	t.Helper()
	cfg := &config.Config{Storage: config.StorageConfig{
		EnablePersistence: true,
		Location:          t.TempDir(),
		FileName:          "statistics.db",
		Backend:           config.BackendSQLite,
	}}
	repo, err := Open(context.Background(), cfg, internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func buildTable(t *testing.T, n int) *stats.Table {
	t.Helper()
	table, err := runlength.Calculate(context.Background(), n)
	require.NoError(t, err)
	return table
}

func TestRepository_StatisticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepository(t)
	table := buildTable(t, 6)

	require.NoError(t, repo.SaveStatistics(ctx, table))

	loaded, err := repo.LoadStatistics(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, table.N, loaded.N)
	assert.Equal(t, table.Rows, loaded.Rows)

	row, ok := loaded.Lookup("1+1+2+2")
	require.True(t, ok)
	assert.Equal(t, uint64(12), row.Multiplicity)
}

func TestRepository_NegativeInfinityLogStoredAsNull(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepository(t)

	require.NoError(t, repo.SaveStatistics(ctx, buildTable(t, 1)))

	var nulls int
	require.NoError(t, repo.DB().Get(&nulls,
		`SELECT COUNT(1) FROM statistics_rows WHERE log_chi_squared IS NULL`))
	assert.Equal(t, 1, nulls)

	loaded, err := repo.LoadStatistics(ctx, 1)
	require.NoError(t, err)
	assert.True(t, math.IsInf(loaded.Rows[0].LogChiSquared, -1))
}

func TestRepository_SaveStatisticsKeepsExisting(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepository(t)
	table := buildTable(t, 4)
	require.NoError(t, repo.SaveStatistics(ctx, table))

	tampered := stats.NewTable(4, []stats.Row{{Partition: "4", Multiplicity: 16}})
	require.NoError(t, repo.SaveStatistics(ctx, tampered))

	loaded, err := repo.LoadStatistics(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, table.Rows, loaded.Rows)
}

func TestRepository_MissingKeys(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepository(t)

	_, err := repo.LoadStatistics(ctx, 9)
	assert.ErrorIs(t, err, core.ErrTableNotFound)
	assert.True(t, core.IsNotFoundError(err))

	_, err = repo.LoadSummary(ctx, stats.PValue)
	assert.ErrorIs(t, err, core.ErrSummaryNotFound)

	has, err := repo.HasKey(ctx, stats.StatisticsKey(9))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRepository_HasKeyAndListLengths(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepository(t)

	for _, n := range []int{5, 2, 3} {
		require.NoError(t, repo.SaveStatistics(ctx, buildTable(t, n)))
	}

	lengths, err := repo.ListLengths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 5}, lengths)

	has, err := repo.HasKey(ctx, "/statistics/N_3")
	require.NoError(t, err)
	assert.True(t, has)

	summary := runlength.SummarizeAll([]*stats.Table{buildTable(t, 2)}, stats.ChiSquared)
	require.NoError(t, repo.SaveSummary(ctx, summary))
	has, err = repo.HasKey(ctx, "/summary/chi_squared")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRepository_SummaryReplace(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepository(t)

	first := runlength.SummarizeAll([]*stats.Table{buildTable(t, 3)}, stats.LogChiSquared)
	require.NoError(t, repo.SaveSummary(ctx, first))

	second := runlength.SummarizeAll([]*stats.Table{buildTable(t, 1), buildTable(t, 3), buildTable(t, 4)}, stats.LogChiSquared)
	require.NoError(t, repo.SaveSummary(ctx, second))

	loaded, err := repo.LoadSummary(ctx, stats.LogChiSquared)
	require.NoError(t, err)
	require.Len(t, loaded.Rows, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{loaded.Rows[0].N, loaded.Rows[1].N, loaded.Rows[2].N})
	assert.InDelta(t, second.Rows[1].Mean, loaded.Rows[1].Mean, 1e-12)
	assert.InDelta(t, second.Rows[2].StdDev, loaded.Rows[2].StdDev, 1e-12)

	// N=1 has a single -Inf log value, so the mean is not finite
	assert.False(t, isFinite(loaded.Rows[0].Mean))
}

func TestDataSource(t *testing.T) {
	dir := t.TempDir()
	driver, dsn, err := DataSource(&config.Config{Storage: config.StorageConfig{
		Backend: config.BackendSQLite, Location: dir, FileName: "x.db",
	}})
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", driver)
	assert.Contains(t, dsn, "x.db")

	driver, dsn, err = DataSource(&config.Config{
		Storage:  config.StorageConfig{Backend: config.BackendPostgres},
		Database: config.DatabaseConfig{URL: "postgres://localhost/sleuth"},
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://localhost/sleuth", dsn)

	_, _, err = DataSource(&config.Config{Storage: config.StorageConfig{Backend: config.BackendBadger}})
	assert.True(t, core.IsInvalidInput(err))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

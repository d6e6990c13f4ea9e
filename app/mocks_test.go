package app

import (
	"context"
	"sync/atomic"
	"testing"

	"coinsleuth/adapters/stats/runlength"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTableRepository implements ports.TableRepository for testing
type MockTableRepository struct {
	mock.Mock
}

func (m *MockTableRepository) HasKey(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockTableRepository) ListLengths(ctx context.Context) ([]int, error) {
	args := m.Called(ctx)
	lengths, _ := args.Get(0).([]int)
	return lengths, args.Error(1)
}

func (m *MockTableRepository) LoadStatistics(ctx context.Context, n int) (*stats.Table, error) {
	args := m.Called(ctx, n)
	table, _ := args.Get(0).(*stats.Table)
	return table, args.Error(1)
}

func (m *MockTableRepository) SaveStatistics(ctx context.Context, table *stats.Table) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *MockTableRepository) LoadSummary(ctx context.Context, statistic stats.Statistic) (*stats.SummaryTable, error) {
	args := m.Called(ctx, statistic)
	summary, _ := args.Get(0).(*stats.SummaryTable)
	return summary, args.Error(1)
}

func (m *MockTableRepository) SaveSummary(ctx context.Context, summary *stats.SummaryTable) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *MockTableRepository) Close() error {
	return m.Called().Error(0)
}

// MockSummaryProvider implements ports.SummaryProvider for testing
type MockSummaryProvider struct {
	mock.Mock
}

func (m *MockSummaryProvider) SummaryFor(ctx context.Context, n int, statistic stats.Statistic) (stats.SummaryRow, error) {
	args := m.Called(ctx, n, statistic)
	return args.Get(0).(stats.SummaryRow), args.Error(1)
}

var quietLogger = internal.NewLogger(internal.LogLevelError)

func memoryConfig() StoreConfig {
	return StoreConfig{EnableInMemoryCache: true}
}

// newCountingStore returns a store whose builds are counted
func newCountingStore(t *testing.T, cfg StoreConfig, repo *MockTableRepository) (*StatisticsStore, *int64) {
	t.Helper()
	var store *StatisticsStore
	var err error
	if repo == nil {
		store, err = NewStatisticsStore(cfg, nil, quietLogger)
	} else {
		store, err = NewStatisticsStore(cfg, repo, quietLogger)
	}
	require.NoError(t, err)

	var builds int64
	store.calculate = func(ctx context.Context, n int) (*stats.Table, error) {
		atomic.AddInt64(&builds, 1)
		return runlength.Calculate(ctx, n)
	}
	return store, &builds
}

func mustTable(t *testing.T, n int) *stats.Table {
	t.Helper()
	table, err := runlength.Calculate(context.Background(), n)
	require.NoError(t, err)
	return table
}

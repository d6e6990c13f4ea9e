package app

import (
	"context"
	"fmt"
	"math"
	"testing"

	"coinsleuth/domain/core"
	"coinsleuth/domain/partition"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T, workers int) *SequenceAnalyzer {
	t.Helper()
	store, _ := newCountingStore(t, memoryConfig(), nil)
	return NewSequenceAnalyzer(store, workers, quietLogger)
}

func TestPartitionOf(t *testing.T) {
	tests := []struct {
		sequence string
		want     partition.ID
	}{
		{"0011", "2+2"},
		{"0", "1"},
		{"HTTH", "1+1+2"},
		{"aaab", "1+3"},
		{"10101", "1+1+1+1+1"},
	}

	for _, tt := range tests {
		p, err := PartitionOf(tt.sequence)
		require.NoError(t, err, tt.sequence)
		assert.Equal(t, tt.want, p.ID(), tt.sequence)
	}
}

func TestPartitionOf_Invalid(t *testing.T) {
	_, err := PartitionOf("")
	assert.ErrorIs(t, err, core.ErrEmptySequence)

	_, err = PartitionOf("0120")
	assert.ErrorIs(t, err, core.ErrNonBinarySequence)
	assert.True(t, core.IsInvalidInput(err))
}

func TestSequenceAnalyzer_Analyze(t *testing.T) {
	analyzer := newAnalyzer(t, 1)

	record, err := analyzer.Analyze(context.Background(), "0011")
	require.NoError(t, err)

	assert.Equal(t, "0011", record.Sequence)
	assert.Equal(t, 4, record.Length)
	assert.InDelta(t, 4.9, record.ChiSquared, 1e-9)
	assert.InDelta(t, math.Log10(4.9), record.LogChiSquared, 1e-9)
	assert.InDelta(t, 0.375, record.PValue, 1e-12)
}

func TestSequenceAnalyzer_SymbolChoiceDoesNotMatter(t *testing.T) {
	analyzer := newAnalyzer(t, 1)
	ctx := context.Background()

	a, err := analyzer.Analyze(ctx, "0100")
	require.NoError(t, err)
	b, err := analyzer.Analyze(ctx, "HTHH")
	require.NoError(t, err)

	assert.Equal(t, a.ChiSquared, b.ChiSquared)
	assert.Equal(t, a.PValue, b.PValue)
}

func TestSequenceAnalyzer_AnalyzeSamplePreservesOrder(t *testing.T) {
	analyzer := newAnalyzer(t, 4)

	sequences := make([]string, 40)
	for i := range sequences {
		sequences[i] = fmt.Sprintf("%08b", i*5)
	}

	records, err := analyzer.AnalyzeSample(context.Background(), sequences)
	require.NoError(t, err)
	require.Len(t, records, len(sequences))
	for i, record := range records {
		assert.Equal(t, sequences[i], record.Sequence)
		assert.Equal(t, 8, record.Length)
	}
}

func TestSequenceAnalyzer_AnalyzeSampleErrors(t *testing.T) {
	analyzer := newAnalyzer(t, 2)

	_, err := analyzer.AnalyzeSample(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrEmptySample)

	_, err = analyzer.AnalyzeSample(context.Background(), []string{"0101", "01x2"})
	assert.ErrorIs(t, err, core.ErrNonBinarySequence)
}

func TestAnalyzeWithTable_LengthMismatch(t *testing.T) {
	_, err := AnalyzeWithTable(mustTable(t, 5), "0101")
	assert.True(t, core.IsInvalidInput(err))
}

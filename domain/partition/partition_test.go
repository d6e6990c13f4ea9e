package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(n int) []Partition {
	var all []Partition
	for p := range Enumerate(n) {
		all = append(all, p)
	}
	return all
}

func TestEnumerate_SingleElement(t *testing.T) {
	all := collect(1)
	require.Len(t, all, 1)
	assert.Equal(t, Partition{1}, all[0])
}

func TestEnumerate_CompleteAndUnique(t *testing.T) {
	for n := 1; n <= 25; n++ {
		seen := make(map[ID]bool)
		for p := range Enumerate(n) {
			assert.True(t, p.Valid(n), "n=%d: invalid partition %v", n, p)
			assert.Equal(t, New(p...), p, "n=%d: partition %v not ascending", n, p)
			id := p.ID()
			assert.False(t, seen[id], "n=%d: duplicate partition %s", n, id)
			seen[id] = true
		}
		assert.Equal(t, Count(n), uint64(len(seen)), "n=%d", n)
	}
}

func TestEnumerate_N4(t *testing.T) {
	ids := make(map[ID]bool)
	for p := range Enumerate(4) {
		ids[p.ID()] = true
	}
	assert.Equal(t, map[ID]bool{
		"1+1+1+1": true,
		"1+1+2":   true,
		"2+2":     true,
		"1+3":     true,
		"4":       true,
	}, ids)
}

func TestEnumerate_RestartsOnNewCall(t *testing.T) {
	seq := Enumerate(6)
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range Enumerate(6) {
		second++
	}
	assert.Equal(t, 11, first)
	assert.Equal(t, first, second)
}

func TestEnumerate_EarlyStop(t *testing.T) {
	taken := 0
	for range Enumerate(30) {
		taken++
		if taken == 3 {
			break
		}
	}
	assert.Equal(t, 3, taken)
}

func TestEnumerate_YieldedSlicesAreIndependent(t *testing.T) {
	all := collect(5)
	ids := make(map[ID]bool)
	for _, p := range all {
		ids[p.ID()] = true
	}
	assert.Len(t, ids, 7)
}

func TestEnumerate_NonPositive(t *testing.T) {
	assert.Empty(t, collect(0))
	assert.Empty(t, collect(-3))
}

func TestCount_KnownValues(t *testing.T) {
	known := map[int]uint64{0: 1, 1: 1, 2: 2, 3: 3, 4: 5, 5: 7, 10: 42, 20: 627, 50: 204226}
	for n, want := range known {
		assert.Equal(t, want, Count(n), "p(%d)", n)
	}
}

func TestID_SortsParts(t *testing.T) {
	assert.Equal(t, ID("1+2+2"), Partition{2, 1, 2}.ID())
	assert.Equal(t, ID("1+2+2"), New(2, 2, 1).ID())
	assert.Equal(t, ID("7"), Partition{7}.ID())
}

func TestID_Parse(t *testing.T) {
	p, err := ID("1+1+3").Parse()
	require.NoError(t, err)
	assert.Equal(t, Partition{1, 1, 3}, p)

	_, err = ID("").Parse()
	assert.Error(t, err)
	_, err = ID("1+x").Parse()
	assert.Error(t, err)
	_, err = ID("0+2").Parse()
	assert.Error(t, err)
}

func TestCounts(t *testing.T) {
	counts := Partition{1, 1, 3}.Counts(5)
	assert.Equal(t, []int{2, 0, 1, 0, 0}, counts)

	weighted := 0
	for i, c := range counts {
		weighted += (i + 1) * c
	}
	assert.Equal(t, 5, weighted)
}

func TestRuns(t *testing.T) {
	assert.Equal(t, Partition{2, 2}, Runs([]rune("0011")))
	assert.Equal(t, Partition{1, 1, 1, 1}, Runs([]rune("HTHT")))
	assert.Equal(t, Partition{3, 1, 2}, Runs([]int{1, 1, 1, 0, 1, 1}))
	assert.Equal(t, Partition{5}, Runs([]byte("00000")))
	assert.Nil(t, Runs([]rune("")))
	assert.Equal(t, ID("1+2+3"), Runs([]rune("000100")).ID())
}

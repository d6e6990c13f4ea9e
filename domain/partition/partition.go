// Package partition models integer partitions of a sequence length into run lengths.
package partition

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxLength is the longest sequence whose partition multiplicities sum to 2^N
// without overflowing uint64.
const MaxLength = 63

// Partition is a multiset of positive run lengths, kept in ascending order.
type Partition []int

// ID is the canonical identity of a partition: its sorted parts joined by "+".
type ID string

// New returns a sorted copy of parts.
func New(parts ...int) Partition {
	p := make(Partition, len(parts))
	copy(p, parts)
	sort.Ints(p)
	return p
}

// ID renders the canonical identity. Parts are sorted first, so generation
// order never changes the identity.
func (p Partition) ID() ID {
	sorted := p
	if !sort.IntsAreSorted(p) {
		sorted = New(p...)
	}
	var b strings.Builder
	for i, part := range sorted {
		if i > 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(part))
	}
	return ID(b.String())
}

// Sum returns the total length covered by the partition.
func (p Partition) Sum() int {
	total := 0
	for _, part := range p {
		total += part
	}
	return total
}

// Counts returns the run-length-count vector for length n: entry k-1 holds the
// number of parts equal to k. n must be at least the largest part.
func (p Partition) Counts(n int) []int {
	counts := make([]int, n)
	for _, part := range p {
		counts[part-1]++
	}
	return counts
}

// Valid reports whether every part is positive and the parts sum to n.
func (p Partition) Valid(n int) bool {
	for _, part := range p {
		if part < 1 {
			return false
		}
	}
	return p.Sum() == n
}

func (id ID) String() string { return string(id) }

// Parse converts an identity back into a partition.
func (id ID) Parse() (Partition, error) {
	if id == "" {
		return nil, fmt.Errorf("empty partition id")
	}
	fields := strings.Split(string(id), "+")
	parts := make([]int, 0, len(fields))
	for _, field := range fields {
		part, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("partition id %q: %w", id, err)
		}
		if part < 1 {
			return nil, fmt.Errorf("partition id %q: part %d is not positive", id, part)
		}
		parts = append(parts, part)
	}
	return New(parts...), nil
}

// Runs scans seq left to right and returns the lengths of its maximal runs of
// identical symbols, in order of appearance. An empty sequence has no runs.
func Runs[T comparable](seq []T) Partition {
	if len(seq) == 0 {
		return nil
	}
	var runs Partition
	current := seq[0]
	length := 1
	for _, symbol := range seq[1:] {
		if symbol == current {
			length++
			continue
		}
		runs = append(runs, length)
		current = symbol
		length = 1
	}
	return append(runs, length)
}

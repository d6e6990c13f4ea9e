// Package testkit generates synthetic coin-flip samples with known biases,
// used to exercise the analysis end to end.
package testkit

import (
	"fmt"
	"math/rand"
	"strings"
)

// Process names a flip-generating model
type Process string

const (
	// ProcessFair flips an unbiased, independent coin
	ProcessFair Process = "fair"
	// ProcessSticky repeats the previous flip with probability Persistence
	ProcessSticky Process = "sticky"
	// ProcessAlternating switches symbols with probability Persistence
	ProcessAlternating Process = "alternating"
	// ProcessBiased lands heads with probability Bias
	ProcessBiased Process = "biased"
)

// ParseProcess validates a process name
func ParseProcess(name string) (Process, error) {
	switch p := Process(strings.ToLower(name)); p {
	case ProcessFair, ProcessSticky, ProcessAlternating, ProcessBiased:
		return p, nil
	}
	return "", fmt.Errorf("unknown process %q", name)
}

// SequenceGeneratorConfig configures the sequence generator
type SequenceGeneratorConfig struct {
	Process     Process `json:"process"`
	Length      int     `json:"length"`
	Count       int     `json:"count"`
	Persistence float64 `json:"persistence"`
	Bias        float64 `json:"bias"`
	Symbols     [2]byte `json:"-"`
	Seed        int64   `json:"seed"`
}

// DefaultSequenceConfig returns a fair process over "0" and "1"
func DefaultSequenceConfig() SequenceGeneratorConfig {
	return SequenceGeneratorConfig{
		Process:     ProcessFair,
		Length:      20,
		Count:       100,
		Persistence: 0.8,
		Bias:        0.7,
		Symbols:     [2]byte{'0', '1'},
		Seed:        42,
	}
}

// SequenceGenerator draws reproducible samples from one process
type SequenceGenerator struct {
	config SequenceGeneratorConfig
	rng    *rand.Rand
}

// NewSequenceGenerator creates a generator seeded from config.Seed
func NewSequenceGenerator(config SequenceGeneratorConfig) *SequenceGenerator {
	if config.Symbols == [2]byte{} {
		config.Symbols = [2]byte{'0', '1'}
	}
	return &SequenceGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns config.Count sequences of config.Length flips
func (g *SequenceGenerator) Generate() ([]string, error) {
	if g.config.Length < 1 || g.config.Count < 1 {
		return nil, fmt.Errorf("length and count must be positive, got %d and %d", g.config.Length, g.config.Count)
	}
	if _, err := ParseProcess(string(g.config.Process)); err != nil {
		return nil, err
	}

	sequences := make([]string, g.config.Count)
	for i := range sequences {
		sequences[i] = g.next()
	}
	return sequences, nil
}

func (g *SequenceGenerator) next() string {
	flips := make([]byte, g.config.Length)
	current := g.rng.Intn(2)
	for i := range flips {
		if i > 0 {
			current = g.step(current)
		} else if g.config.Process == ProcessBiased {
			current = g.biasedFlip()
		}
		flips[i] = g.config.Symbols[current]
	}
	return string(flips)
}

func (g *SequenceGenerator) step(previous int) int {
	switch g.config.Process {
	case ProcessSticky:
		if g.rng.Float64() < g.config.Persistence {
			return previous
		}
		return 1 - previous
	case ProcessAlternating:
		if g.rng.Float64() < g.config.Persistence {
			return 1 - previous
		}
		return previous
	case ProcessBiased:
		return g.biasedFlip()
	}
	return g.rng.Intn(2)
}

func (g *SequenceGenerator) biasedFlip() int {
	if g.rng.Float64() < g.config.Bias {
		return 1
	}
	return 0
}

package rng

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Fixed seed words shared by every generator in a session.
const (
	SeedHi uint64 = 0x0102030405060708
	SeedLo uint64 = 0x090a0b0c0d0e0f10
)

// Normal draws from the standard normal distribution using a PCG source.
// It is not safe for concurrent use.
type Normal struct {
	dist distuv.Normal
}

// New returns a Normal seeded with the fixed session seed. Two values
// returned by New produce identical sequences.
func New() *Normal {
	return NewWithSeed(SeedHi, SeedLo)
}

// NewWithSeed returns a Normal seeded with the given PCG seed words.
func NewWithSeed(hi, lo uint64) *Normal {
	return &Normal{
		dist: distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(hi, lo)},
	}
}

// Draw returns the next standard normal value.
func (n *Normal) Draw() float64 {
	return n.dist.Rand()
}

// Fill overwrites dst with standard normal draws multiplied by scale.
func (n *Normal) Fill(dst []float64, scale float64) []float64 {
	for i := range dst {
		dst[i] = n.dist.Rand() * scale
	}
	return dst
}

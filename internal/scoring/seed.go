package scoring

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
)

// seededRand returns a pseudo-random stream keyed by a stable identity so
// repeated calls for the same record produce the same values.
func seededRand(stream, identity string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(stream))
	h.Write([]byte{0})
	h.Write([]byte(identity))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

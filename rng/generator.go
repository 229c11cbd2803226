package rng

import (
	"math/bits"
	"sync"
)

// DefaultSeed seeds the process wide generator returned by Default.
const DefaultSeed uint64 = 67280421310721

// Generator is a Threefry stream: every draw encrypts an incrementing 64-bit
// counter under the seed. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	seed    uint64
	counter uint64
}

// New returns a generator positioned at the start of the stream for seed.
func New(seed uint64) *Generator {
	return &Generator{seed: seed}
}

var (
	defaultOnce sync.Once
	defaultGen  *Generator
)

// Default returns the process wide generator. It is created once.
func Default() *Generator {
	defaultOnce.Do(func() {
		defaultGen = New(DefaultSeed)
	})
	return defaultGen
}

// next draws one value, the caller holds g.mu.
func (g *Generator) next() uint64 {
	v := Threefry64(g.seed, uint32(g.counter), uint32(g.counter>>32))
	g.counter++
	return v
}

// uint64n is Lemire's multiply-shift reduction with rejection of the biased
// low range, the caller holds g.mu.
func (g *Generator) uint64n(n uint64) uint64 {
	hi, lo := bits.Mul64(g.next(), n)
	if lo < n {
		thresh := -n % n
		for lo < thresh {
			hi, lo = bits.Mul64(g.next(), n)
		}
	}
	return hi
}

// CurrentSeed reports the seed the stream was keyed with.
func (g *Generator) CurrentSeed() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seed
}

// SetSeed rekeys the generator and rewinds its counter.
func (g *Generator) SetSeed(seed uint64) {
	g.mu.Lock()
	g.seed = seed
	g.counter = 0
	g.mu.Unlock()
}

// Seed implements rand.Source.
func (g *Generator) Seed(seed int64) {
	g.SetSeed(uint64(seed))
}

// Uint64 implements rand.Source64.
func (g *Generator) Uint64() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next()
}

// Int63 implements rand.Source.
func (g *Generator) Int63() int64 {
	return int64(g.Uint64() >> 1)
}

func (g *Generator) Uint32() uint32 {
	return uint32(g.Uint64())
}

// Intn returns a uniform value in [0, n). It panics if n <= 0.
func (g *Generator) Intn(n int) int {
	if n <= 0 {
		panic("rng: invalid argument to Intn")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.uint64n(uint64(n)))
}

// Float64 returns a uniform value in [0, 1).
func (g *Generator) Float64() float64 {
	return float64(g.Uint64()>>11) / (1 << 53)
}

// Perm returns a random permutation of [0, n).
func (g *Generator) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := n - 1; i > 0; i-- {
		j := int(g.uint64n(uint64(i + 1)))
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// Shuffle permutes n elements through swap, like rand.Shuffle.
func (g *Generator) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, g.Intn(i+1))
	}
}

// Clone returns an independent generator at the same stream position.
func (g *Generator) Clone() *Generator {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &Generator{seed: g.seed, counter: g.counter}
}

// Fork returns a child generator keyed by the next draw of g.
func (g *Generator) Fork() *Generator {
	return New(g.Uint64())
}

// Package cache models a set-associative cache with a pluggable replacement
// policy. Entries carry no payload bytes: a cache line here is nothing more
// than a tag and a validity flag, matching a pure hit/miss accounting model
// rather than a data-moving one.
package cache

import (
	"math/bits"

	"github.com/sarchlab/armcachefi/configerr"
)

// ReplacePolicy selects the victim-choice algorithm used on allocation.
type ReplacePolicy int

const (
	// RoundRobin cycles through ways in order, one set-local cursor per set.
	RoundRobin ReplacePolicy = iota
	// PseudoRandom drives victim selection from a single 32-bit LCG state
	// shared by the whole descriptor.
	PseudoRandom
)

// AllocPolicy controls whether a store miss allocates a line.
type AllocPolicy int

const (
	// WriteAllocate fetches the line on a store miss before updating it.
	WriteAllocate AllocPolicy = iota
	// NoWriteAllocate leaves cache contents untouched on a store miss.
	NoWriteAllocate
)

// Result reports the outcome of a single cache access.
type Result int

const (
	// Miss means the tag was not resident. A load miss allocates the line; a
	// store miss allocates it only under WriteAllocate.
	Miss Result = iota
	// Hit means the tag matched a valid entry.
	Hit
)

// ValidateResult reports the outcome of validate-injection.
type ValidateResult int

const (
	// ValidateOK means the set/way coordinate is addressable.
	ValidateOK ValidateResult = iota
	// ValidateOutOfRange means set or way exceeds the descriptor's geometry.
	ValidateOutOfRange
	// ValidateUninitialized means the descriptor was never initialised.
	ValidateUninitialized
)

// entry is one way within a set: a tag and a validity flag. There is no
// second meaning layered onto the flag — a clear flag is simply "no tag here".
type entry struct {
	tag   uint32
	valid bool
}

// Stats accumulates per-cache counters across the descriptor's lifetime.
type Stats struct {
	LoadHits     uint64
	LoadMisses   uint64
	StoreHits    uint64
	StoreMisses  uint64
	Compulsory   uint64
	Evictions    uint64
}

// HitRate returns the fraction of load+store accesses that hit.
func (s Stats) HitRate() float64 {
	hits := s.LoadHits + s.StoreHits
	total := hits + s.LoadMisses + s.StoreMisses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// MissRate returns the fraction of load+store accesses that missed.
func (s Stats) MissRate() float64 {
	return 1 - s.HitRate()
}

// Cache is a single set-associative cache descriptor.
type Cache struct {
	initialized bool

	sizeBytes int
	ways      int
	blockSize int
	sets      int

	replace ReplacePolicy
	alloc   AllocPolicy

	offsetBits uint
	indexBits  uint
	tagShift   uint

	entries [][]entry

	// rrCursor is the round-robin next-way cursor, one per set.
	rrCursor []int

	// prState is the pseudo-random LCG state, shared across the whole cache.
	prState uint32
	// prSelections counts pseudo-random victim selections made so far, used
	// to apply the extra-advance-every-13th bias.
	prSelections uint64

	stats Stats
}

// lcgMultiplier is the multiplier of the pseudo-random replacement recurrence
// sₙ₊₁ = sₙ · 48271 (mod 2^32).
const lcgMultiplier uint32 = 48271

// biasInterval is how often the pseudo-random cursor takes an extra step.
const biasInterval = 13

// New allocates a cache descriptor. size, ways and blockSize must each be a
// positive power of two, and size must equal ways*blockSize*sets for some
// integer number of sets; violating this is a fatal configuration error, not
// a recoverable runtime condition, so New panics rather than returning one.
func New(size, ways, blockSize int, replace ReplacePolicy, alloc AllocPolicy) *Cache {
	c, err := NewChecked(size, ways, blockSize, replace, alloc)
	if err != nil {
		panic(err)
	}
	return c
}

// NewChecked is the non-panicking counterpart of New, for callers (CLI
// installers) that want to translate a bad geometry into a clean exit rather
// than a panic.
func NewChecked(size, ways, blockSize int, replace ReplacePolicy, alloc AllocPolicy) (*Cache, error) {
	if !isPowerOfTwo(size) || !isPowerOfTwo(ways) || !isPowerOfTwo(blockSize) {
		return nil, configerr.Newf("cache geometry", "size, ways and block size must all be powers of two (got size=%d ways=%d block=%d)", size, ways, blockSize)
	}
	if ways <= 0 || blockSize <= 0 {
		return nil, configerr.New("cache geometry", "ways and block size must be positive")
	}
	bytesPerSet := ways * blockSize
	if size%bytesPerSet != 0 {
		return nil, configerr.Newf("cache geometry", "size %d is not ways*blockSize*N for any integer N (ways=%d block=%d)", size, ways, blockSize)
	}
	sets := size / bytesPerSet
	if !isPowerOfTwo(sets) {
		return nil, configerr.Newf("cache geometry", "derived set count %d is not a power of two", sets)
	}

	entries := make([][]entry, sets)
	for i := range entries {
		entries[i] = make([]entry, ways)
	}

	offsetBits := log2(blockSize)
	indexBits := log2(sets)

	return &Cache{
		initialized: true,
		sizeBytes:   size,
		ways:        ways,
		blockSize:   blockSize,
		sets:        sets,
		replace:     replace,
		alloc:       alloc,
		offsetBits:  offsetBits,
		indexBits:   indexBits,
		tagShift:    offsetBits + indexBits,
		entries:     entries,
		rrCursor:    make([]int, sets),
		prState:     1,
	}, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int) uint {
	return uint(bits.TrailingZeros(uint(n)))
}

// split decomposes a guest address into (tag, set index, block offset).
func (c *Cache) split(addr uint32) (tag uint32, set int, offset uint32) {
	offset = addr & ((1 << c.offsetBits) - 1)
	set = int((addr >> c.offsetBits) & ((1 << c.indexBits) - 1))
	tag = addr >> c.tagShift
	return
}

// Stats returns a snapshot of the descriptor's accumulated counters.
func (c *Cache) Stats() Stats { return c.stats }

// Sets returns the number of sets in the descriptor.
func (c *Cache) Sets() int { return c.sets }

// Ways returns the descriptor's associativity.
func (c *Cache) Ways() int { return c.ways }

// BlockSize returns the descriptor's line size in bytes.
func (c *Cache) BlockSize() int { return c.blockSize }

// Load performs a read access. An uninitialised descriptor tolerates the call
// and reports Miss without mutating anything.
func (c *Cache) Load(addr uint32) Result {
	if !c.initialized {
		return Miss
	}
	tag, set, _ := c.split(addr)

	if way, ok := c.findHit(set, tag); ok {
		_ = way
		c.stats.LoadHits++
		return Hit
	}

	c.stats.LoadMisses++
	c.allocate(set, tag)
	return Miss
}

// Store performs a write access. Under a no-write-allocate policy, a store
// miss leaves cache contents untouched; under write-allocate it allocates the
// line exactly as a load miss would.
func (c *Cache) Store(addr uint32) Result {
	if !c.initialized {
		return Miss
	}
	tag, set, _ := c.split(addr)

	if _, ok := c.findHit(set, tag); ok {
		c.stats.StoreHits++
		return Hit
	}

	c.stats.StoreMisses++
	if c.alloc == WriteAllocate {
		c.allocate(set, tag)
	}
	return Miss
}

// findHit scans a set's ways for a valid entry matching tag.
func (c *Cache) findHit(set int, tag uint32) (way int, ok bool) {
	for w, e := range c.entries[set] {
		if e.valid && e.tag == tag {
			return w, true
		}
	}
	return 0, false
}

// allocate finds a slot for tag within set — first an invalid way scanning
// from way 0, otherwise a victim from the configured replacement policy —
// and overwrites it, updating the compulsory/eviction counters.
func (c *Cache) allocate(set int, tag uint32) {
	row := c.entries[set]

	for w := range row {
		if !row[w].valid {
			row[w].tag = tag
			row[w].valid = true
			c.stats.Compulsory++
			return
		}
	}

	victim := c.chooseVictim(set)
	if row[victim].valid {
		c.stats.Evictions++
	} else {
		c.stats.Compulsory++
	}
	row[victim].tag = tag
	row[victim].valid = true
}

// chooseVictim picks a way to replace within set per the descriptor's
// replacement policy, advancing whatever cursor/state that policy maintains.
func (c *Cache) chooseVictim(set int) int {
	switch c.replace {
	case RoundRobin:
		victim := c.rrCursor[set]
		c.rrCursor[set] = (victim + 1) % c.ways
		return victim
	case PseudoRandom:
		victim := int(c.prState % uint32(c.ways))
		c.advancePseudoRandom()
		c.prSelections++
		if c.prSelections%biasInterval == 0 {
			c.advancePseudoRandom()
		}
		return victim
	default:
		return 0
	}
}

func (c *Cache) advancePseudoRandom() {
	c.prState = c.prState * lcgMultiplier
}

// SeedPseudoRandom sets the initial LCG state for a pseudo-random descriptor.
// Exposed so tests (and deterministic replay) can pin s₀ instead of relying
// on New's default seed of 1.
func (c *Cache) SeedPseudoRandom(seed uint32) {
	c.prState = seed
}

// Invalidate marks the entry at (set, way) invalid unconditionally. An
// out-of-range coordinate, or an uninitialised descriptor, is a no-op.
func (c *Cache) Invalidate(set, way int) {
	if !c.initialized || set < 0 || set >= c.sets || way < 0 || way >= c.ways {
		return
	}
	c.entries[set][way].valid = false
}

// InvalidateAll marks every entry in the descriptor invalid.
func (c *Cache) InvalidateAll() {
	if !c.initialized {
		return
	}
	for s := range c.entries {
		for w := range c.entries[s] {
			c.entries[s][w].valid = false
		}
	}
}

// IsValid returns the validity flag at (set, way). An out-of-range
// coordinate, or an uninitialised descriptor, reports not-valid.
func (c *Cache) IsValid(set, way int) bool {
	if !c.initialized || set < 0 || set >= c.sets || way < 0 || way >= c.ways {
		return false
	}
	return c.entries[set][way].valid
}

// ReconstructAddress returns (tag << tagShift) | (set << offsetBits); the low
// block-offset bits are always zero, so the result is the base address of
// the block occupying (set, way) regardless of what was loaded into the tag.
func (c *Cache) ReconstructAddress(set, way int) uint32 {
	if !c.initialized || set < 0 || set >= c.sets || way < 0 || way >= c.ways {
		return 0
	}
	tag := c.entries[set][way].tag
	return (tag << c.tagShift) | (uint32(set) << c.offsetBits)
}

// ValidateInjection checks that (set, way, wordInBlock) addresses a real
// location within the descriptor's geometry.
func (c *Cache) ValidateInjection(set, way, wordInBlock int) ValidateResult {
	if !c.initialized {
		return ValidateUninitialized
	}
	wordsPerBlock := c.blockSize / 4
	if set < 0 || set >= c.sets || way < 0 || way >= c.ways || wordInBlock < 0 || wordInBlock >= wordsPerBlock {
		return ValidateOutOfRange
	}
	return ValidateOK
}

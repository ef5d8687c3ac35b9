package cache_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armcachefi/cache"
	"github.com/sarchlab/armcachefi/configerr"
)

var _ = Describe("Cache", func() {
	Describe("initialisation", func() {
		It("starts with every entry invalid and every load a miss", func() {
			c := cache.New(16, 2, 4, cache.RoundRobin, cache.WriteAllocate)
			for set := 0; set < c.Sets(); set++ {
				for way := 0; way < c.Ways(); way++ {
					Expect(c.IsValid(set, way)).To(BeFalse())
				}
			}
			Expect(c.Load(0x00)).To(Equal(cache.Miss))
		})

		It("refuses a non-power-of-two geometry", func() {
			_, err := cache.NewChecked(17, 2, 4, cache.RoundRobin, cache.WriteAllocate)
			Expect(err).To(HaveOccurred())
			var cfgErr *configerr.ConfigError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
		})

		It("refuses a size that isn't ways*blockSize*sets", func() {
			_, err := cache.NewChecked(20, 2, 4, cache.RoundRobin, cache.WriteAllocate)
			Expect(err).To(HaveOccurred())
			var cfgErr *configerr.ConfigError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
		})
	})

	Describe("scenario 1: direct-mapped trivial", func() {
		It("misses on every new block and hits on the repeat", func() {
			c := cache.New(16, 1, 4, cache.RoundRobin, cache.WriteAllocate)
			Expect(c.Load(0x00)).To(Equal(cache.Miss))
			Expect(c.Load(0x04)).To(Equal(cache.Miss))
			Expect(c.Load(0x08)).To(Equal(cache.Miss))
			Expect(c.Load(0x0C)).To(Equal(cache.Miss))
			Expect(c.Load(0x00)).To(Equal(cache.Hit))

			stats := c.Stats()
			Expect(stats.LoadHits).To(Equal(uint64(1)))
			Expect(stats.LoadMisses).To(Equal(uint64(4)))
			Expect(stats.Compulsory).To(Equal(uint64(4)))
			Expect(stats.Evictions).To(Equal(uint64(0)))
		})
	})

	Describe("scenario 2: two-way thrash under round-robin", func() {
		It("evicts way 0 then way 1 in cursor order", func() {
			c := cache.New(16, 2, 4, cache.RoundRobin, cache.WriteAllocate)
			// 0x00, 0x10, 0x20, 0x00 all map to set 0 (blockSize=4, sets=2).
			Expect(c.Load(0x00)).To(Equal(cache.Miss))
			Expect(c.Load(0x10)).To(Equal(cache.Miss))
			Expect(c.Load(0x20)).To(Equal(cache.Miss)) // evicts way 0 (tag of 0x00)
			Expect(c.Load(0x00)).To(Equal(cache.Miss)) // evicts way 1 (tag of 0x10)

			stats := c.Stats()
			Expect(stats.LoadMisses).To(Equal(uint64(4)))
			Expect(stats.Compulsory).To(Equal(uint64(2)))
			Expect(stats.Evictions).To(Equal(uint64(2)))
		})
	})

	Describe("scenario 4: write-no-allocate store miss", func() {
		It("keeps missing loads under no-write-allocate but hits under write-allocate", func() {
			noAlloc := cache.New(16, 1, 4, cache.RoundRobin, cache.NoWriteAllocate)
			noAlloc.Store(0x00)
			Expect(noAlloc.Load(0x00)).To(Equal(cache.Miss))

			alloc := cache.New(16, 1, 4, cache.RoundRobin, cache.WriteAllocate)
			alloc.Store(0x00)
			Expect(alloc.Load(0x00)).To(Equal(cache.Hit))
		})
	})

	Describe("pseudo-random replacement", func() {
		It("is deterministic: identical seed and sequence give identical counters", func() {
			build := func() *cache.Cache {
				c := cache.New(64, 4, 4, cache.PseudoRandom, cache.WriteAllocate)
				c.SeedPseudoRandom(7)
				for i := 0; i < 50; i++ {
					c.Load(uint32(i) * 4)
				}
				return c
			}
			a := build().Stats()
			b := build().Stats()
			Expect(a).To(Equal(b))
		})
	})

	Describe("round-robin determinism", func() {
		It("gives identical counters for identical parameters and access sequences", func() {
			run := func() cache.Stats {
				c := cache.New(32, 2, 4, cache.RoundRobin, cache.WriteAllocate)
				for _, a := range []uint32{0x00, 0x10, 0x20, 0x00, 0x30, 0x00} {
					c.Load(a)
				}
				return c.Stats()
			}
			Expect(run()).To(Equal(run()))
		})
	})

	Describe("compulsory/eviction accounting invariant", func() {
		It("satisfies compulsory+evictions = load_misses + store_misses under write-allocate", func() {
			c := cache.New(16, 2, 4, cache.RoundRobin, cache.WriteAllocate)
			for _, a := range []uint32{0x00, 0x10, 0x20, 0x30, 0x00, 0x40} {
				c.Load(a)
			}
			c.Store(0x50)
			c.Store(0x00)

			s := c.Stats()
			Expect(s.Compulsory + s.Evictions).To(Equal(s.LoadMisses + s.StoreMisses))
		})

		It("excludes store misses from the invariant under no-write-allocate", func() {
			c := cache.New(16, 2, 4, cache.RoundRobin, cache.NoWriteAllocate)
			for _, a := range []uint32{0x00, 0x10, 0x20} {
				c.Load(a)
			}
			c.Store(0x99) // store-miss, no allocation

			s := c.Stats()
			Expect(s.Compulsory + s.Evictions).To(Equal(s.LoadMisses))
		})
	})

	Describe("ReconstructAddress", func() {
		It("returns the block-aligned base address of the allocated entry", func() {
			c := cache.New(64, 4, 8, cache.RoundRobin, cache.WriteAllocate)
			addr := uint32(0x12345)
			c.Load(addr)

			// Find the way that now holds addr's block.
			var found bool
			for way := 0; way < c.Ways(); way++ {
				set := int((addr / 8) % uint32(c.Sets()))
				if c.IsValid(set, way) {
					rebuilt := c.ReconstructAddress(set, way)
					if rebuilt == addr&^uint32(7) {
						found = true
					}
				}
			}
			Expect(found).To(BeTrue())
		})
	})

	Describe("Invalidate", func() {
		It("clears a valid entry unconditionally", func() {
			c := cache.New(16, 2, 4, cache.RoundRobin, cache.WriteAllocate)
			c.Load(0x00)
			Expect(c.IsValid(0, 0)).To(BeTrue())
			c.Invalidate(0, 0)
			Expect(c.IsValid(0, 0)).To(BeFalse())
		})

		It("is a no-op for an out-of-range coordinate", func() {
			c := cache.New(16, 2, 4, cache.RoundRobin, cache.WriteAllocate)
			Expect(func() { c.Invalidate(99, 99) }).NotTo(Panic())
		})
	})

	Describe("ValidateInjection", func() {
		It("reports ValidateUninitialized for a zero-value descriptor", func() {
			var c cache.Cache
			Expect(c.ValidateInjection(0, 0, 0)).To(Equal(cache.ValidateUninitialized))
		})

		It("reports ValidateOutOfRange for a coordinate past the geometry", func() {
			c := cache.New(16, 2, 4, cache.RoundRobin, cache.WriteAllocate)
			Expect(c.ValidateInjection(0, 5, 0)).To(Equal(cache.ValidateOutOfRange))
		})

		It("reports ValidateOK for an addressable coordinate", func() {
			c := cache.New(16, 2, 4, cache.RoundRobin, cache.WriteAllocate)
			Expect(c.ValidateInjection(0, 0, 0)).To(Equal(cache.ValidateOK))
		})
	})
})

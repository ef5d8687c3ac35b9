package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armcachefi/cache"
)

var _ = Describe("Hierarchy", func() {
	var h *cache.Hierarchy

	BeforeEach(func() {
		h = cache.NewHierarchy(
			cache.Config{Size: 16, Ways: 1, BlockSize: 4, Replace: cache.RoundRobin, Alloc: cache.NoWriteAllocate},
			cache.Config{Size: 16, Ways: 1, BlockSize: 4, Replace: cache.RoundRobin, Alloc: cache.WriteAllocate},
			cache.Config{Size: 64, Ways: 2, BlockSize: 4, Replace: cache.RoundRobin, Alloc: cache.WriteAllocate},
		)
	})

	Describe("scenario 3: L1 to L2 cascade", func() {
		It("forwards exactly one L2 load per I-cache miss and none on the repeat", func() {
			Expect(h.LoadInstruction(0x1000)).To(Equal(cache.Miss))
			Expect(h.L2.Stats().LoadMisses + h.L2.Stats().LoadHits).To(Equal(uint64(1)))

			Expect(h.LoadInstruction(0x1000)).To(Equal(cache.Hit))
			Expect(h.L2.Stats().LoadMisses + h.L2.Stats().LoadHits).To(Equal(uint64(1)))
		})

		It("does the same for D-cache loads and stores", func() {
			h.StoreData(0x2000)
			Expect(h.L2.Stats().StoreMisses + h.L2.Stats().StoreHits).To(Equal(uint64(1)))

			h.LoadData(0x2000)
			Expect(h.L2.Stats().LoadMisses+h.L2.Stats().LoadHits+h.L2.Stats().StoreMisses+h.L2.Stats().StoreHits).To(Equal(uint64(1)))
		})
	})

	It("tolerates a direct I-cache store and a direct L2 load without panicking", func() {
		h.ICache.Store(0x3000) // no-op semantically for instructions, but must not panic
		Expect(func() { h.L2.Load(0x4000) }).NotTo(Panic())
	})

	Describe("ParseSelector", func() {
		It("recognises the three control-channel spellings", func() {
			for _, tc := range []struct {
				in   string
				want cache.Selector
			}{
				{"icache", cache.SelectICache},
				{"dcache", cache.SelectDCache},
				{"l2cache", cache.SelectL2},
			} {
				got, ok := cache.ParseSelector(tc.in)
				Expect(ok).To(BeTrue())
				Expect(got).To(Equal(tc.want))
			}
		})

		It("rejects unknown selectors", func() {
			_, ok := cache.ParseSelector("bogus")
			Expect(ok).To(BeFalse())
		})
	})
})

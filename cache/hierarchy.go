package cache

// Hierarchy wires an instruction cache and a data cache as L1 peers that
// forward misses into a shared unified L2. L2 never cascades further, and
// there is no back-invalidation between levels.
type Hierarchy struct {
	ICache *Cache
	DCache *Cache
	L2     *Cache
}

// Selector names one of the three descriptors in a Hierarchy, used both by
// the control-channel protocol and by callers that want to address a cache
// generically.
type Selector int

const (
	// SelectICache addresses the instruction cache.
	SelectICache Selector = iota
	// SelectDCache addresses the data cache.
	SelectDCache
	// SelectL2 addresses the unified L2 cache.
	SelectL2
)

// ParseSelector maps the ASCII cache-selector strings used on the control
// channel ("icache" | "dcache" | "l2cache") to a Selector, reporting ok=false
// for anything else.
func ParseSelector(s string) (Selector, bool) {
	switch s {
	case "icache":
		return SelectICache, true
	case "dcache":
		return SelectDCache, true
	case "l2cache":
		return SelectL2, true
	default:
		return 0, false
	}
}

// String renders a Selector back to its control-channel spelling.
func (s Selector) String() string {
	switch s {
	case SelectICache:
		return "icache"
	case SelectDCache:
		return "dcache"
	case SelectL2:
		return "l2cache"
	default:
		return "unknown"
	}
}

// NewHierarchy builds the three-level hierarchy from per-level configs. The
// instruction cache is always constructed no-write-allocate: it never
// stores, so the allocation policy on stores is moot but fixed for clarity.
func NewHierarchy(i, d, l2 Config) *Hierarchy {
	return &Hierarchy{
		ICache: New(i.Size, i.Ways, i.BlockSize, i.Replace, NoWriteAllocate),
		DCache: New(d.Size, d.Ways, d.BlockSize, d.Replace, d.Alloc),
		L2:     New(l2.Size, l2.Ways, l2.BlockSize, l2.Replace, l2.Alloc),
	}
}

// Select returns the descriptor named by sel.
func (h *Hierarchy) Select(sel Selector) *Cache {
	switch sel {
	case SelectICache:
		return h.ICache
	case SelectDCache:
		return h.DCache
	case SelectL2:
		return h.L2
	default:
		return nil
	}
}

// LoadInstruction performs an I-cache load at addr, forwarding a miss to L2.
// L2's own counters observe the forwarded access; its result is discarded.
func (h *Hierarchy) LoadInstruction(addr uint32) Result {
	res := h.ICache.Load(addr)
	if res == Miss {
		h.L2.Load(addr)
	}
	return res
}

// LoadData performs a D-cache load at addr, forwarding a miss to L2.
func (h *Hierarchy) LoadData(addr uint32) Result {
	res := h.DCache.Load(addr)
	if res == Miss {
		h.L2.Load(addr)
	}
	return res
}

// StoreData performs a D-cache store at addr, forwarding a miss to L2.
func (h *Hierarchy) StoreData(addr uint32) Result {
	res := h.DCache.Store(addr)
	if res == Miss {
		h.L2.Store(addr)
	}
	return res
}

// Config bundles the geometry and policy parameters for one level of the
// hierarchy, mirroring the JSON-configurable shape of a latency table: a
// plain struct with a matching Default*Config constructor per level.
type Config struct {
	Size      int           `json:"size_bytes"`
	Ways      int           `json:"ways"`
	BlockSize int           `json:"block_size"`
	Replace   ReplacePolicy `json:"replace_policy"`
	Alloc     AllocPolicy   `json:"alloc_policy"`
}

// DefaultICacheConfig returns the instruction-cache geometry used by the
// reference plugin this core is modelled on: 32KB, 4-way, 32-byte lines.
func DefaultICacheConfig() Config {
	return Config{Size: 32 * 1024, Ways: 4, BlockSize: 32, Replace: RoundRobin, Alloc: NoWriteAllocate}
}

// DefaultDCacheConfig returns the data-cache geometry used by the reference
// plugin: 32KB, 4-way, 32-byte lines, write-allocate.
func DefaultDCacheConfig() Config {
	return Config{Size: 32 * 1024, Ways: 4, BlockSize: 32, Replace: RoundRobin, Alloc: WriteAllocate}
}

// DefaultL2Config returns the unified L2 geometry used by the reference
// plugin: 256KB, 8-way, 64-byte lines, write-allocate.
func DefaultL2Config() Config {
	return Config{Size: 256 * 1024, Ways: 8, BlockSize: 64, Replace: RoundRobin, Alloc: WriteAllocate}
}

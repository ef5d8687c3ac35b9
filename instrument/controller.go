// Package instrument implements the instrumentation controller: the logic
// armed at block-translation time that drives the cache hierarchy and
// cycle ledger from instruction-execution and memory-access callbacks, and
// recognises cache-maintenance MCR opcodes to fire cache invalidation
// inline.
package instrument

import (
	"github.com/sarchlab/armcachefi/armdecode"
	"github.com/sarchlab/armcachefi/cache"
	"github.com/sarchlab/armcachefi/control"
	"github.com/sarchlab/armcachefi/cycles"
)

// Register names one of the 16 ARM v7-A general-purpose registers.
type Register = uint8

// RegisterFile is the read-only register-read capability the host emulator
// provides to a callback. Reads are side-effect-free.
type RegisterFile interface {
	Read(r Register) uint32
}

// Direction distinguishes a load from a store at a memory-access callback.
type Direction int

const (
	// DirLoad is a memory read.
	DirLoad Direction = iota
	// DirStore is a memory write.
	DirStore
)

// Instruction is the opaque per-instruction view the block-translation hook
// exposes: a virtual address, its encoded size, and its raw opcode word.
type Instruction struct {
	VirtualAddress uint32
	SizeInBytes    int
	Word           uint32
}

// Block is the opaque block handle delivered at translation time.
type Block struct {
	Instructions []Instruction
}

// ProfileRecorder receives a (label, cycle) pair, plus the register file, when
// execution reaches a configured profiling breakpoint address. The profiler
// package implements this to emit (label, cycle, return-address) triples and
// to detect RTOS context-switch breakpoints.
type ProfileRecorder interface {
	Record(label string, cycle uint64, regs RegisterFile)
}

// noopRecorder discards every record; used when no profiling is configured.
type noopRecorder struct{}

func (noopRecorder) Record(string, uint64, RegisterFile) {}

// Controller is the instrumentation controller: it owns no state of its
// own beyond the textBegin/textEnd window and the profiling-breakpoint
// table, driving the cache hierarchy, cycle ledger and injection controller
// it was built with.
type Controller struct {
	Hierarchy   *cache.Hierarchy
	Ledger      *cycles.Ledger
	Injector    *control.InjectionController
	TextBegin   uint32
	TextEnd     uint32
	Breakpoints map[uint32]string
	Recorder    ProfileRecorder
}

// New builds a Controller. recorder may be nil, in which case profiling
// breakpoints are silently ignored.
func New(hier *cache.Hierarchy, ledger *cycles.Ledger, injector *control.InjectionController, textBegin, textEnd uint32, breakpoints map[uint32]string, recorder ProfileRecorder) *Controller {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Controller{
		Hierarchy:   hier,
		Ledger:      ledger,
		Injector:    injector,
		TextBegin:   textBegin,
		TextEnd:     textEnd,
		Breakpoints: breakpoints,
		Recorder:    recorder,
	}
}

// inTextRange reports whether addr lies in [TextBegin, TextEnd).
func (c *Controller) inTextRange(addr uint32) bool {
	return addr >= c.TextBegin && addr < c.TextEnd
}

// ExecuteInstruction is the body of the per-instruction-exec callback (step
// 1): it counts the instruction's cost into the cycle ledger, drives an
// I-cache load, checks the injection deadline, and emits a profiling record
// if the instruction's address is a configured breakpoint. It also performs
// step 3: decoding the opcode and, on a recognised cache-maintenance MCR,
// firing the inline cache-invalidate effect.
//
// The cycle counter is advanced before the injection deadline is checked.
func (c *Controller) ExecuteInstruction(instr Instruction, regs RegisterFile) {
	if c.inTextRange(instr.VirtualAddress) {
		cycles.Cost(instr.Word, c.Ledger)
		c.Hierarchy.LoadInstruction(instr.VirtualAddress)

		if c.Injector != nil {
			c.Injector.CheckAndFire(c.Ledger.SimTime, c.Hierarchy)
		}

		if label, ok := c.Breakpoints[instr.VirtualAddress]; ok {
			c.Recorder.Record(label, c.Ledger.SimTime, regs)
		}
	}

	c.armCacheMaintenance(instr.Word, regs)
}

// ExecuteMemoryAccess is the body of the per-memory-access callback (step
// 2): instruction fetches in [TextBegin, TextEnd) were already counted by
// ExecuteInstruction, so this returns early for those; everything else
// drives the D-cache.
func (c *Controller) ExecuteMemoryAccess(addr uint32, dir Direction) {
	if c.inTextRange(addr) {
		return
	}
	switch dir {
	case DirLoad:
		c.Hierarchy.LoadData(addr)
	case DirStore:
		c.Hierarchy.StoreData(addr)
	}
}

// ExecuteBlock runs ExecuteInstruction over every instruction in block in
// program order, then resets the cycle ledger's interlock base at the block
// boundary, the caller-side contract Ledger.ResetBlock documents.
func (c *Controller) ExecuteBlock(block Block, regs RegisterFile) {
	for _, instr := range block.Instructions {
		c.ExecuteInstruction(instr, regs)
	}
	c.Ledger.ResetBlock()
}

// armCacheMaintenance handles inline cache-maintenance effects: on a
// data-cache line-invalidate MCR, read the named register and invalidate
// the (set, way) it encodes; on an instruction-cache invalidate-all MCR,
// invalidate every I-cache entry.
// Any other opcode is a no-op here — an ordinary ALU/branch/load/store
// instruction fired no inline cache-maintenance effect.
func (c *Controller) armCacheMaintenance(word uint32, regs RegisterFile) {
	inst := armdecode.Decode(word)
	if inst.Category != armdecode.CategoryCoprocMCR {
		return
	}

	switch {
	case armdecode.IsDataCacheInvalidateLine(inst):
		if regs == nil {
			return
		}
		val := regs.Read(inst.Operand.Rt)
		set, way := extractSetWay(c.Hierarchy.DCache, val)
		c.Hierarchy.DCache.Invalidate(set, way)
	case armdecode.IsInstructionCacheInvalidateAll(inst):
		c.Hierarchy.ICache.InvalidateAll()
	}
}

// extractSetWay pulls a (set, way) coordinate out of a 32-bit DCISW-style
// register value, per the descriptor's own geometry: way occupies the top
// log2(ways) bits (bits 31 down to 32-log2(ways)), and set occupies the
// log2(sets) bits starting just above the block-offset field (bits
// log2(blockSize)+log2(sets)-1 down to log2(blockSize)).
func extractSetWay(c *cache.Cache, val uint32) (set, way int) {
	sets := c.Sets()
	ways := c.Ways()
	blockSize := c.BlockSize()

	setMask := uint32(sets - 1)
	wayMask := uint32(ways - 1)

	offsetBits := bitsForMask(uint32(blockSize - 1))
	wayShift := 32 - bitsForMask(wayMask)

	set = int((val >> offsetBits) & setMask)
	way = int((val >> wayShift) & wayMask)
	return set, way
}

// bitsForMask returns how many low bits mask covers, i.e. log2(mask+1) for a
// power-of-two-minus-one mask.
func bitsForMask(mask uint32) uint {
	n := uint(0)
	for mask != 0 {
		n++
		mask >>= 1
	}
	return n
}

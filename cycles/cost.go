package cycles

import "github.com/sarchlab/armcachefi/armdecode"

// Latency constants: how many cycles after its result is produced before
// a dependent read sees the value.
const (
	LatencyALU          uint64 = 1
	LatencyLoad         uint64 = 2
	LatencyLoadHalfByte uint64 = 2
	LatencyMultiplyLong uint64 = 3
)

// baseCost selects the base cycle count for a decoded category, from the
// same family the decoder classifies opcodes into.
func baseCost(cat armdecode.Category) uint64 {
	switch cat {
	case armdecode.CategoryRegularLoad, armdecode.CategoryExtraLoad,
		armdecode.CategoryBlockLoad, armdecode.CategorySyncLoad,
		armdecode.CategoryCoprocLoad, armdecode.CategoryCoprocMRC:
		return 2
	case armdecode.CategorySyncSwap:
		return 2
	default:
		// Stores, MCR, and everything the decoder reports as
		// not-load-store (ordinary data-processing/branch opcodes) share
		// the baseline ALU cost.
		return 1
	}
}

// latencyFor selects the write-to-use latency for a decoded category.
func latencyFor(cat armdecode.Category) uint64 {
	switch cat {
	case armdecode.CategoryRegularLoad, armdecode.CategoryCoprocMRC:
		return LatencyLoad
	case armdecode.CategoryExtraLoad:
		return LatencyLoadHalfByte
	default:
		return LatencyALU
	}
}

// isRegisterControlledShift reports whether w is a data-processing
// (register) instruction whose shift amount comes from a register (Rs)
// rather than an immediate — ARM ARM encodes this as bit 4 set and bit 7
// clear within the data-processing-register family (op1 bits 27:25 = 00x,
// bit 25 clear). Load/store addressing on ARM v7-A never uses a
// register-controlled shift amount, so this only ever fires for the
// "not-load-store" family the decoder reports.
func isRegisterControlledShift(w uint32) bool {
	op1 := uint8((w >> 25) & 0x7)
	if op1 != 0x0 && op1 != 0x1 {
		return false
	}
	bit25 := (w>>25)&1 == 1
	bit4 := (w>>4)&1 == 1
	bit7 := (w>>7)&1 == 1
	return !bit25 && bit4 && !bit7
}

// readRegisters returns the registers inst reads, used to charge
// read-after-write stalls.
func readRegisters(inst armdecode.Instruction) []uint8 {
	o := inst.Operand
	regs := make([]uint8, 0, 3)

	if inst.Category == armdecode.CategoryNotLoadStore {
		// The decoder only populates operand fields for the load/store
		// families it recognises; an unclassified opcode contributes no
		// known register reads to the interlock model.
		return regs
	}

	switch inst.Category {
	case armdecode.CategoryRegularStore, armdecode.CategoryExtraStore,
		armdecode.CategoryCoprocStore, armdecode.CategoryCoprocMCR,
		armdecode.CategorySyncStore, armdecode.CategorySyncSwap:
		regs = append(regs, o.Rt)
	}

	regs = append(regs, o.Rn)
	if o.Rm != 0 {
		regs = append(regs, o.Rm)
	}

	return regs
}

// writeRegister returns the register inst writes and whether it writes one
// at all. Stores, MCR (core register to coprocessor) and undecoded opcodes
// never write a general-purpose register target from this model's point of
// view.
func writeRegister(inst armdecode.Instruction) (uint8, bool) {
	switch inst.Category {
	case armdecode.CategoryRegularLoad, armdecode.CategoryExtraLoad,
		armdecode.CategoryCoprocMRC, armdecode.CategorySyncLoad:
		return inst.Operand.Rt, true
	case armdecode.CategorySyncSwap:
		return inst.Operand.Rt, true
	default:
		return 0, false
	}
}

// Cost computes the number of cycles word consumes against ledger,
// following five steps:
//
//  1. select a base cycle count from the opcode's family,
//  2. add 1 for a register-controlled shift,
//  3. for every register read, add max(0, ready[r]-interlockBase),
//  4. for every register write, set ready[r] = interlockBase+result+latency,
//  5. advance interlockBase by the result.
//
// It mutates ledger and returns the cycles charged for this instruction;
// callers accumulate the return value into SimTime.
func Cost(word uint32, ledger *Ledger) uint64 {
	inst := armdecode.Decode(word)

	result := baseCost(inst.Category)
	if isRegisterControlledShift(word) {
		result++
	}

	stall := uint64(0)
	for _, r := range readRegisters(inst) {
		stall += ledger.readStall(r)
	}
	result += stall

	if r, ok := writeRegister(inst); ok {
		ledger.markWrite(r, result, latencyFor(inst.Category))
	}

	ledger.InterlockBase += result
	ledger.SimTime += result

	return result
}

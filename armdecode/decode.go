// Package armdecode classifies 32-bit ARM v7-A instruction words that touch
// memory or the coprocessor cache-maintenance interface. Decode is a pure
// function: no state, no side effects, and no bit pattern ever causes it to
// fault — an encoding it does not recognise simply classifies as
// CategoryNotLoadStore.
//
// Classification follows ARM architecture reference manual tables A5-1,
// A5-2, A5-10, A5-11, A5-15, A5-21 and A5-22, dispatched from a flat switch
// over the primary op1/op fields rather than a nest of sub-decoders.
package armdecode

// Category tags the outcome of Decode.
type Category int

const (
	CategoryNotLoadStore Category = iota
	CategoryRegularLoad
	CategoryRegularStore
	CategoryExtraLoad
	CategoryExtraStore
	CategoryBlockLoad
	CategoryBlockStore
	CategorySyncLoad
	CategorySyncStore
	CategorySyncSwap
	CategoryCoprocLoad
	CategoryCoprocStore
	CategoryCoprocMCR
	CategoryCoprocMRC
)

// String names a Category for logging and test failure messages.
func (c Category) String() string {
	switch c {
	case CategoryNotLoadStore:
		return "not-load-store"
	case CategoryRegularLoad:
		return "regular-load"
	case CategoryRegularStore:
		return "regular-store"
	case CategoryExtraLoad:
		return "extra-load"
	case CategoryExtraStore:
		return "extra-store"
	case CategoryBlockLoad:
		return "block-load"
	case CategoryBlockStore:
		return "block-store"
	case CategorySyncLoad:
		return "sync-load"
	case CategorySyncStore:
		return "sync-store"
	case CategorySyncSwap:
		return "sync-swap"
	case CategoryCoprocLoad:
		return "coproc-load"
	case CategoryCoprocStore:
		return "coproc-store"
	case CategoryCoprocMCR:
		return "coproc-mcr"
	case CategoryCoprocMRC:
		return "coproc-mrc"
	default:
		return "unknown"
	}
}

// Operand bundles every field an instruction can contribute, across all
// categories. Only the fields meaningful to the decoded Category are
// populated; the rest hold their zero value.
type Operand struct {
	Cond uint8 // bits 31:28

	Rn  uint8 // base register
	Rt  uint8 // destination / source register (Rd for coprocessor forms)
	Rt2 uint8 // second destination, or opc2 for MCR/MRC
	Rm  uint8 // index/source register

	Type uint8 // shift type (regular/extra ld-st) or opcode extension (opc1 for MCR/MRC)

	Add      bool // U bit: add (true) or subtract (false) the offset
	Index    bool // P bit: pre-indexed addressing
	Writeback bool // W bit, or (P==0)

	Coproc      uint8 // CRn for MCR/MRC
	Coprocessor uint8 // coprocessor number, bits 11:8 — meaningful for all coprocessor forms
	CRm         uint8 // CRm, meaningful only for MCR/MRC

	Imm     uint32 // the one immediate meaningful for this encoding (5/8/12/32 bits)
	RegList uint16 // register-list mask, block operations only
}

// Instruction is the full decoder output for one 32-bit word.
type Instruction struct {
	Category Category
	Operand  Operand
}

// field extraction helpers, ARM v7-A fixed bit positions.
func cond(w uint32) uint8     { return uint8(w >> 28) }
func op1Primary(w uint32) uint8 { return uint8((w >> 25) & 0x7) }
func opPrimary(w uint32) uint8  { return uint8((w >> 4) & 0x1) }
func rn(w uint32) uint8       { return uint8((w >> 16) & 0xF) }
func rt(w uint32) uint8       { return uint8((w >> 12) & 0xF) }
func rsOrCoproc(w uint32) uint8 { return uint8((w >> 8) & 0xF) }
func rm(w uint32) uint8       { return uint8(w & 0xF) }
func op1Secondary(w uint32) uint8 { return uint8((w >> 20) & 0x1F) }
func op2Secondary(w uint32) uint8 { return uint8((w >> 4) & 0xF) }
func bit(w uint32, n uint) bool { return (w>>n)&1 == 1 }

// Decode classifies one 32-bit ARM v7-A instruction word.
func Decode(w uint32) Instruction {
	op1 := op1Primary(w)
	op := opPrimary(w)

	switch {
	case op1 == 0x2:
		return decodeRegularLoadStore(w)
	case op1 == 0x3 && op == 0:
		return decodeRegularLoadStore(w)
	case op1 == 0x0 || op1 == 0x1:
		return decodeMiscLoadStore(w)
	case op1 == 0x4:
		return decodeBlockLoadStore(w)
	case op1 == 0x6:
		return decodeCoprocLoadStore(w)
	case op1 == 0x7 && cond(w) != 0xF:
		if inst, ok := decodeCoprocRegisterTransfer(w); ok {
			return inst
		}
		return Instruction{Category: CategoryNotLoadStore}
	default:
		return Instruction{Category: CategoryNotLoadStore}
	}
}

// decodeRegularLoadStore covers ARM ARM table A5-15 (load/store word and
// unsigned byte). The family's secondary op1 field (bits 24:20) carries the
// load/store bit in its low bit and the byte/word bit in bit 2.
func decodeRegularLoadStore(w uint32) Instruction {
	op1 := op1Secondary(w)
	a := bit(w, 25) // A bit: register (1) vs immediate (0) offset, or literal

	isLoad := op1&0x1 == 1

	cat := CategoryRegularStore
	if isLoad {
		cat = CategoryRegularLoad
	}

	o := baseOperand(w)
	o.Add = op1&0x8 != 0
	p := op1&0x10 != 0
	o.Index = p
	o.Writeback = !p || (op1&0x2 != 0)

	if a {
		o.Imm = uint32((w >> 7) & 0x1F) // imm5
		o.Rm = rm(w)
		o.Type = uint8((w >> 5) & 0x3)
	} else {
		o.Imm = w & 0xFFF // imm12
	}

	return Instruction{Category: cat, Operand: o}
}

// decodeMiscLoadStore covers ARM ARM table A5-2's carve-outs for extra
// load/store instructions (halfword, dual-word, signed byte/halfword — table
// A5-10/A5-11) and synchronization primitives (table A5-21 variant used by
// SWP/LDREX families), both reached via primary op1 ∈ {000, 001}.
func decodeMiscLoadStore(w uint32) Instruction {
	if bit(w, 25) {
		// bit 25 (arm_op bit) set means this is a data-processing immediate
		// encoding, not a load/store at all.
		return Instruction{Category: CategoryNotLoadStore}
	}
	if !bit(w, 7) || !bit(w, 4) {
		// Extra load/store and sync-primitive encodings both require bits
		// 7 and 4 set; anything else in this op1 range is data processing
		// or a multiply, and is therefore not a load/store here.
		return Instruction{Category: CategoryNotLoadStore}
	}

	op1 := op1Secondary(w)
	op2 := op2Secondary(w)

	// Synchronization primitives: op1 bit 4 (0x10) set, op2 == 0x9.
	if op1&0x10 == 0x10 && op2 == 0x9 {
		return decodeSyncPrimitive(w)
	}

	return decodeExtraLoadStore(w)
}

// decodeExtraLoadStore covers ARM ARM tables A5-10/A5-11: halfword,
// signed-byte/halfword and dual-word load/store.
func decodeExtraLoadStore(w uint32) Instruction {
	op1 := op1Secondary(w)
	op2 := uint8((w >> 5) & 0x3)

	isLoad := op1&0x1 == 1
	// Unprivileged forms (op1 & 0x12 == 0x02) are still loads/stores for
	// classification purposes; they carry the same isLoad polarity.

	var cat Category
	switch op2 {
	case 0x1, 0x2, 0x3:
		if isLoad {
			cat = CategoryExtraLoad
		} else {
			cat = CategoryExtraStore
		}
	default:
		return Instruction{Category: CategoryNotLoadStore}
	}

	o := baseOperand(w)
	o.Add = op1&0x8 != 0
	p := op1&0x10 != 0
	o.Index = p
	o.Writeback = !p || (op1&0x2 != 0)

	if op1&0x04 != 0 {
		// immediate form: 4 high bits in 11:8, 4 low bits in 3:0
		o.Imm = uint32(((w >> 4) & 0xF0) | (w & 0xF))
	} else {
		o.Rm = rm(w)
	}

	return Instruction{Category: cat, Operand: o}
}

// decodeSyncPrimitive covers the SWP/SWPB/LDREX*/STREX* family (ARM ARM
// table A5-21, synchronization primitives carve-out of A5-2). The op field
// (secondary op1, bits 24:20) selects the specific primitive; word/byte SWP
// classify as CategorySyncSwap, STREX* as CategorySyncStore, LDREX* as
// CategorySyncLoad.
func decodeSyncPrimitive(w uint32) Instruction {
	opBits := uint8((w >> 20) & 0xF)

	o := baseOperand(w)

	switch opBits {
	case 0x0, 0x4: // SWP, SWPB
		o.Rt2 = rm(w)
		return Instruction{Category: CategorySyncSwap, Operand: o}
	case 0x8, 0xA, 0xC, 0xE: // STREX, STREXD, STREXB, STREXH
		o.Rm = rm(w) // Rt being stored
		o.Rt2 = rt(w) // Rd receiving the status
		return Instruction{Category: CategorySyncStore, Operand: o}
	case 0x9, 0xB, 0xD, 0xF: // LDREX, LDREXD, LDREXB, LDREXH
		return Instruction{Category: CategorySyncLoad, Operand: o}
	default:
		return Instruction{Category: CategoryNotLoadStore}
	}
}

// decodeBlockLoadStore covers ARM ARM table A5-214 (load/store multiple). Rn
// = 13 (SP) combined with the ascending/descending discriminator (bit 23)
// identifies the POP- and PUSH-eligible encodings, but the result does not
// mark them as such: a POP or PUSH decodes to the same category and operand
// fields as any other LDM/STM.
func decodeBlockLoadStore(w uint32) Instruction {
	opBits := uint8((w >> 20) & 0x3F)
	rnVal := rn(w)

	isLoad := opBits&0x01 == 1

	cat := CategoryBlockStore
	if isLoad {
		cat = CategoryBlockLoad
	}

	ascending := bit(w, 23)
	if rnVal == 13 {
		if isLoad && ascending {
			// POP-eligible encoding (LDM increment-after with Rn=SP).
		} else if !isLoad && !ascending {
			// PUSH-eligible encoding (STM decrement-before with Rn=SP).
		}
	}

	o := baseOperand(w)
	o.Writeback = opBits&0x02 != 0
	o.RegList = uint16(w & 0xFFFF)

	return Instruction{Category: cat, Operand: o}
}

// decodeCoprocLoadStore covers ARM ARM table A5-22 (coprocessor load/store
// and double register transfers). CRd is carried in Rt; the coprocessor
// number occupies bits 11:8.
func decodeCoprocLoadStore(w uint32) Instruction {
	op1 := uint8((w >> 20) & 0x3F)
	isLoad := op1&0x1 == 1

	// op1 == 0 is reserved for this family (neither load nor store).
	if op1 == 0 {
		return Instruction{Category: CategoryNotLoadStore}
	}

	cat := CategoryCoprocStore
	if isLoad {
		cat = CategoryCoprocLoad
	}

	o := baseOperand(w)
	o.Rt = uint8((w >> 12) & 0xF) // CRd
	o.Coprocessor = rsOrCoproc(w)
	o.Imm = w & 0xFF // 8-bit immediate, zero-extended
	p := op1&0x10 != 0
	o.Index = p
	o.Writeback = !p || (op1&0x02 != 0)

	return Instruction{Category: cat, Operand: o}
}

// decodeCoprocRegisterTransfer covers ARM ARM table A5-21 variant for MCR
// (ARM core register to coprocessor) and MRC (coprocessor to ARM core
// register), distinguishing them on the L bit (bit 20). This is the family
// that carries cache-maintenance operations (coprocessor 15).
func decodeCoprocRegisterTransfer(w uint32) (Instruction, bool) {
	if !bit(w, 4) {
		// bit 4 clear here means CDP (coprocessor data processing), which
		// this decoder does not classify as load/store.
		return Instruction{}, false
	}

	o := baseOperand(w)
	o.Coprocessor = rsOrCoproc(w)    // coprocessor number
	o.Coproc = rn(w)                 // CRn
	o.CRm = rm(w)                    // CRm
	o.Rt = rt(w)                     // Rt (the ARM core register)
	o.Type = uint8((w >> 21) & 0x7)  // opc1
	o.Rt2 = uint8((w >> 5) & 0x7)    // opc2

	if bit(w, 20) {
		return Instruction{Category: CategoryCoprocMRC, Operand: o}, true
	}
	return Instruction{Category: CategoryCoprocMCR, Operand: o}, true
}

// baseOperand extracts the fields common to every load/store family.
func baseOperand(w uint32) Operand {
	return Operand{
		Cond: cond(w),
		Rn:   rn(w),
		Rt:   rt(w),
	}
}

// IsDataCacheInvalidateLine reports whether inst is the MCR encoding that
// invalidates one data-cache line by set/way (coprocessor=15, opc1=0,
// CRn=7, CRm=6, opc2=2 — "DCISW"-style set/way invalidate).
func IsDataCacheInvalidateLine(inst Instruction) bool {
	if inst.Category != CategoryCoprocMCR {
		return false
	}
	o := inst.Operand
	return o.Coprocessor == 15 && o.Coproc == 7 && o.CRm == 6 && o.Type == 0 && o.Rt2 == 2
}

// IsInstructionCacheInvalidateAll reports whether inst is the MCR encoding
// that invalidates the entire instruction cache (coprocessor=15, opc1=0,
// CRn=7, CRm=5, opc2=0 — "ICIALLU"-style invalidate-all).
func IsInstructionCacheInvalidateAll(inst Instruction) bool {
	if inst.Category != CategoryCoprocMCR {
		return false
	}
	o := inst.Operand
	return o.Coprocessor == 15 && o.Coproc == 7 && o.CRm == 5 && o.Type == 0 && o.Rt2 == 0
}

// Package cycles implements the per-opcode cycle-cost model: a base cost
// per instruction family plus static register-interlock accounting against
// a 16-entry ready-time scoreboard, reset at each basic-block boundary.
package cycles

// registerCount is the size of the ready-time scoreboard. ARM v7-A exposes
// 16 general-purpose registers (R0-R15); the scoreboard is indexed directly
// by register number.
const registerCount = 16

// Ledger is the process-wide cycle ledger: a monotonically increasing sim
// time, the current basic block's interlock base, and the ready-time
// scoreboard used to compute read-after-write stalls.
type Ledger struct {
	SimTime       uint64
	InterlockBase uint64
	ReadyTime     [registerCount]uint64
}

// NewLedger returns a zeroed cycle ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// ResetBlock zeroes the interlock base at a basic-block boundary: the
// caller resets interlock-base to 0 at each basic-block boundary. The
// ready-time scoreboard and sim time are untouched — only the reference
// point for stall computation moves.
func (l *Ledger) ResetBlock() {
	l.InterlockBase = 0
}

// readStall returns the stall cycles incurred reading register r: the
// amount by which its ready time exceeds the current interlock base, or
// zero if the register is already available.
func (l *Ledger) readStall(r uint8) uint64 {
	if r >= registerCount {
		return 0
	}
	ready := l.ReadyTime[r]
	if ready <= l.InterlockBase {
		return 0
	}
	return ready - l.InterlockBase
}

// markWrite sets register r's ready time following a write that completes
// `result` cycles after the current interlock base plus `latency` more
// cycles before the value is available to a dependent read.
func (l *Ledger) markWrite(r uint8, result, latency uint64) {
	if r >= registerCount {
		return
	}
	l.ReadyTime[r] = l.InterlockBase + result + latency
}

package profiler

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/armcachefi/instrument"
)

// lrRegister is the link register, read at a breakpoint hit to report the
// call site the hit instruction returns to.
const lrRegister instrument.Register = 14

// switchPrefix is the label a "<- vTaskSwitchContext" end-point breakpoint
// carries; hitting it triggers the RTOS-aware context-switch detector.
const switchPrefix = "<- vTaskSwitchContext"

// defaultTaskNameOffset and defaultMaxTaskNameLen locate a FreeRTOS task's
// name within its TCB, as determined against a running target rather than
// derivable from the struct layout alone.
const (
	defaultTaskNameOffset = 0x34
	defaultMaxTaskNameLen = 16
)

// PhysMemReader is the optional physical-memory read accessor the profiler
// variant uses to resolve the pxCurrentTCB pointer and the task name it
// points to. Only installed profiling runs that configure a pxCurrentTCB
// entry need this capability.
type PhysMemReader interface {
	ReadPhysical(addr uint32, buf []byte) error
}

// Recorder implements instrument.ProfileRecorder: it writes one line per
// breakpoint hit, and on a vTaskSwitchContext exit emits the current task
// name read out of the guest's TCB.
type Recorder struct {
	Out     io.Writer
	PhysMem PhysMemReader

	tcbAddr    uint32
	hasTCBAddr bool

	taskNameOffset uint32
	maxTaskNameLen int
}

// NewRecorder builds a Recorder from a parsed Table. If the table named a
// pxCurrentTCB address and physMem is non-nil, context-switch detection is
// active; otherwise switch breakpoints are still reported as ordinary hits,
// just without the "~ switch to" line.
func NewRecorder(out io.Writer, table *Table, physMem PhysMemReader) *Recorder {
	r := &Recorder{
		Out:            out,
		PhysMem:        physMem,
		taskNameOffset: defaultTaskNameOffset,
		maxTaskNameLen: defaultMaxTaskNameLen,
	}
	r.tcbAddr, r.hasTCBAddr = table.TCBAddress()
	return r
}

// Record writes "<label>: <cycle>, <return-address>" and, if label is the
// distinguished vTaskSwitchContext exit point, follows it with a "~ switch
// to <name>" line resolved from the guest's pxCurrentTCB.
func (r *Recorder) Record(label string, cycle uint64, regs instrument.RegisterFile) {
	var lr uint32
	if regs != nil {
		lr = regs.Read(lrRegister)
	}
	fmt.Fprintf(r.Out, "%s: %d, %#x\n", label, cycle, lr)

	if strings.HasPrefix(label, switchPrefix) {
		r.emitContextSwitch()
	}
}

// emitContextSwitch reads pxCurrentTCB, then the task name at a fixed offset
// within the pointed-to TCB, and reports it. Any physical-memory read
// failure is silently skipped — profiling must never abort the run.
func (r *Recorder) emitContextSwitch() {
	if r.PhysMem == nil || !r.hasTCBAddr {
		return
	}

	var tcbValBuf [4]byte
	if err := r.PhysMem.ReadPhysical(r.tcbAddr, tcbValBuf[:]); err != nil {
		return
	}
	tcbVal := uint32(tcbValBuf[0]) | uint32(tcbValBuf[1])<<8 | uint32(tcbValBuf[2])<<16 | uint32(tcbValBuf[3])<<24

	nameAddr := tcbVal + r.taskNameOffset
	nameBuf := make([]byte, r.maxTaskNameLen)
	if err := r.PhysMem.ReadPhysical(nameAddr, nameBuf); err != nil {
		return
	}

	name := nameBuf
	if i := indexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	fmt.Fprintf(r.Out, "~ switch to %s\n", name)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

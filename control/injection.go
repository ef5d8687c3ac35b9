package control

import (
	"fmt"
	"io"

	"github.com/sarchlab/armcachefi/cache"
)

// State is the injection controller's lifecycle state.
type State int

const (
	// Disabled is terminal: the per-instruction check is always a no-op.
	Disabled State = iota
	// Armed is the initial state when the plugin was installed with
	// doInject set. It waits for the cycle counter to reach the threshold.
	Armed
	// Firing is entered when the threshold is first reached; the handshake
	// may be retried in this state on a validation failure.
	Firing
	// Fired is terminal: the injection has been reported and no further
	// checks occur.
	Fired
)

// Plan describes an injection plan: a cycle threshold plus the cache and the
// set/way/word coordinate to corrupt. InjectionController does not build
// one; it keeps the threshold itself and reads the coordinate off the
// channel during the handshake.
type Plan struct {
	CycleThreshold uint64
	Cache          cache.Selector
	Set            int
	Way            int
	WordInBlock    int
}

// InjectionController drives the armed/firing/fired state machine: it
// observes the cycle ledger, and on reaching CycleThreshold negotiates
// set/way/cache/word coordinates over the control channel and reports the
// target address and cycle count. It never writes guest memory itself —
// only the address is published, leaving the actual bit-flip to whatever
// drives the control channel on the other end.
type InjectionController struct {
	state     State
	threshold uint64

	channel *Channel
	sink    io.Writer
}

// NewInjectionController builds the controller. If doInject is false it
// starts (and stays) Disabled without touching the channel. Otherwise it
// reads the cycle threshold as the injection plan's first field — per the
// data model, the plan (including its threshold) is "created by the
// injection controller on receipt from the control channel" — and starts
// Armed, waiting for the cycle ledger to reach it.
func NewInjectionController(doInject bool, channel *Channel, sink io.Writer) (*InjectionController, error) {
	if !doInject {
		return &InjectionController{state: Disabled, channel: channel, sink: sink}, nil
	}

	threshold, err := channel.RecvDecimal()
	if err != nil {
		return nil, fmt.Errorf("control: receiving injection cycle threshold: %w", err)
	}

	return &InjectionController{
		state:     Armed,
		threshold: threshold,
		channel:   channel,
		sink:      sink,
	}, nil
}

// NewInjectionControllerWithThreshold builds a controller with an
// already-known threshold, bypassing the channel read — used by tests and
// by callers that negotiate the threshold some other way.
func NewInjectionControllerWithThreshold(doInject bool, threshold uint64, channel *Channel, sink io.Writer) *InjectionController {
	state := Disabled
	if doInject {
		state = Armed
	}
	return &InjectionController{
		state:     state,
		threshold: threshold,
		channel:   channel,
		sink:      sink,
	}
}

// State returns the controller's current lifecycle state.
func (c *InjectionController) State() State { return c.state }

// Disable forces the controller into the terminal Disabled state, used on a
// control-channel I/O error: the rest of the simulation continues, but
// injection no longer participates.
func (c *InjectionController) Disable() {
	c.state = Disabled
}

func (c *InjectionController) logf(format string, args ...any) {
	if c.sink == nil {
		return
	}
	fmt.Fprintf(c.sink, format, args...)
}

// CheckAndFire is called once per executed instruction with the cycle
// ledger's current value after the increment for that instruction. A
// Disabled or Fired controller does nothing. An Armed controller transitions
// to Firing the first time cycleCount reaches threshold and immediately
// attempts the handshake; a Firing controller retries the handshake on every
// subsequent call until it succeeds and transitions to Fired.
func (c *InjectionController) CheckAndFire(cycleCount uint64, hier *cache.Hierarchy) {
	switch c.state {
	case Disabled, Fired:
		return
	case Armed:
		if cycleCount < c.threshold {
			return
		}
		c.state = Firing
		fallthrough
	case Firing:
		c.attemptHandshake(cycleCount, hier)
	}
}

// attemptHandshake runs one pass of the firing protocol. On a validation
// failure it logs the error and leaves the controller in Firing for a
// retry; on success it reports the target address and transitions to Fired.
func (c *InjectionController) attemptHandshake(cycleCount uint64, hier *cache.Hierarchy) {
	set, err := c.channel.RecvDecimal()
	if err != nil {
		c.ioError(err)
		return
	}
	way, err := c.channel.RecvDecimal()
	if err != nil {
		c.ioError(err)
		return
	}
	selectorStr, err := c.channel.RecvString()
	if err != nil {
		c.ioError(err)
		return
	}

	sel, ok := cache.ParseSelector(selectorStr)
	if !ok {
		c.logf("ERROR: unknown cache selector %q\n", selectorStr)
		return
	}
	descriptor := hier.Select(sel)

	// word-in-block is not known until step 4, so this first check only
	// covers set/way range; it is redone below once word is known.
	if v := descriptor.ValidateInjection(int(set), int(way), 0); v != cache.ValidateOK {
		c.logf("ERROR: invalid injection request set=%d way=%d cache=%s\n", set, way, sel)
	}

	valid := descriptor.IsValid(int(set), int(way))
	validByte := byte(0)
	if valid {
		validByte = 1
	}
	if err := c.channel.SendByte(validByte); err != nil {
		c.ioError(err)
		return
	}

	word, err := c.channel.RecvDecimal()
	if err != nil {
		c.ioError(err)
		return
	}

	if v := descriptor.ValidateInjection(int(set), int(way), int(word)); v != cache.ValidateOK {
		c.logf("ERROR: invalid injection request set=%d way=%d word=%d cache=%s\n", set, way, word, sel)
		// Handshake continues for diagnostics, but no address is
		// transmitted; the operator may retry.
		return
	}

	base := descriptor.ReconstructAddress(int(set), int(way))
	target := base + uint32(word)*4

	if err := c.channel.SendHex(uint32(cycleCount)); err != nil {
		c.ioError(err)
		return
	}
	if err := c.channel.SendHex(target); err != nil {
		c.ioError(err)
		return
	}

	c.state = Fired
}

// ioError reports a control-channel failure and disables injection for the
// remainder of the run: statistics are still written, but the handshake no
// longer participates.
func (c *InjectionController) ioError(err error) {
	c.logf("ERROR: control channel I/O: %v\n", err)
	c.state = Disabled
}

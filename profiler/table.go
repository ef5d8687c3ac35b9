// Package profiler implements the supplemental function-range profiling
// variant: parsing a function-range description file into breakpoint
// addresses, and recording (label, cycle, return-address) hits plus
// RTOS-aware context-switch detection.
package profiler

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Table is the parsed breakpoint table: a guest address maps to a label
// already carrying its entry/exit marker ("-*>", "->", "<-"), exactly the
// strings the reference profiler printed as the hit record's prefix.
type Table struct {
	labels map[uint32]string

	tcbAddr    uint32
	hasTCBAddr bool
}

// Lookup returns the label configured at addr, if any.
func (t *Table) Lookup(addr uint32) (string, bool) {
	l, ok := t.labels[addr]
	return l, ok
}

// Breakpoints returns the table as an address->label map, the shape the
// instrumentation controller's breakpoint table expects.
func (t *Table) Breakpoints() map[uint32]string {
	out := make(map[uint32]string, len(t.labels))
	for addr, label := range t.labels {
		out[addr] = label
	}
	return out
}

// TCBAddress returns the address of the pxCurrentTCB pointer, if the input
// named one, for the RTOS context-switch detector.
func (t *Table) TCBAddress() (uint32, bool) {
	return t.tcbAddr, t.hasTCBAddr
}

// ParseFunctionRanges parses the on-disk function-range format: one entry
// per line, `<name> - <start>[; <end>[, <end>]*]`. A single-point entry (no
// semicolon) is labelled "-*> <name>" at its one address. A ranged entry is
// labelled "-> <name>" at start and "<- <name>" at every listed end. The
// distinguished name "pxCurrentTCB" is not added to the label table; its
// address is recorded separately for the context-switch detector.
func ParseFunctionRanges(r io.Reader) (*Table, error) {
	t := &Table{labels: make(map[uint32]string)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := t.parseLine(line); err != nil {
			return nil, fmt.Errorf("profiler: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("profiler: read function-range file: %w", err)
	}
	return t, nil
}

func (t *Table) parseLine(line string) error {
	name, rest, ok := strings.Cut(line, " - ")
	if !ok {
		return fmt.Errorf("missing ' - ' separator in %q", line)
	}
	name = strings.TrimSpace(name)

	// rest is either "<start>" or "<start>; <end>[, <end>]*".
	startField, tail, hasTail := strings.Cut(rest, ";")
	start, err := parseAddr(startField)
	if err != nil {
		return fmt.Errorf("parsing start address: %w", err)
	}

	if name == "pxCurrentTCB" {
		t.tcbAddr = start
		t.hasTCBAddr = true
		return nil
	}

	if !hasTail {
		t.labels[start] = "-*> " + name
		return nil
	}

	t.labels[start] = "-> " + name
	for _, endField := range strings.Split(tail, ",") {
		end, err := parseAddr(endField)
		if err != nil {
			return fmt.Errorf("parsing end address: %w", err)
		}
		t.labels[end] = "<- " + name
	}
	return nil
}

func parseAddr(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

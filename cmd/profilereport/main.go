// Package main provides profilereport, the entry point for the function-range
// profiler variant: it parses a function-range file, drives the
// instrumentation controller over a synthetic instruction stream the same
// way armcachefi does, and writes (label, cycle, return-address) hit records
// to stdout. It supplies no register file and no physical-memory reader, so
// every return address prints as 0x0 and no context-switch lines are written.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/armcachefi/cache"
	"github.com/sarchlab/armcachefi/configerr"
	"github.com/sarchlab/armcachefi/cycles"
	"github.com/sarchlab/armcachefi/instrument"
	"github.com/sarchlab/armcachefi/profiler"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: profilereport <function-ranges-file> <textBegin-hex> <textEnd-hex>\n")
		os.Exit(2)
	}

	rangesPath := os.Args[1]
	textBegin, err := parseHex32(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "profilereport: textBegin: %v\n", err)
		os.Exit(2)
	}
	textEnd, err := parseHex32(os.Args[3])
	if err != nil {
		fmt.Fprintf(os.Stderr, "profilereport: textEnd: %v\n", err)
		os.Exit(2)
	}

	f, err := os.Open(rangesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "profilereport: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	table, err := profiler.ParseFunctionRanges(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "profilereport: %v\n", err)
		var cfgErr *configerr.ConfigError
		if errors.As(err, &cfgErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	recorder := profiler.NewRecorder(os.Stdout, table, nil)

	hier := cache.NewHierarchy(cache.DefaultICacheConfig(), cache.DefaultDCacheConfig(), cache.DefaultL2Config())
	ledger := cycles.NewLedger()
	ctrl := instrument.New(hier, ledger, nil, textBegin, textEnd, table.Breakpoints(), recorder)

	if err := runBlocks(os.Stdin, ctrl, textBegin); err != nil {
		fmt.Fprintf(os.Stderr, "profilereport: %v\n", err)
		os.Exit(1)
	}
}

func parseHex32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func runBlocks(r *os.File, ctrl *instrument.Controller, textBegin uint32) error {
	scanner := bufio.NewScanner(r)
	addr := textBegin
	var block instrument.Block

	flush := func() {
		if len(block.Instructions) == 0 {
			return
		}
		ctrl.ExecuteBlock(block, nil)
		block = instrument.Block{}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		word, err := parseHex32(line)
		if err != nil {
			return fmt.Errorf("parsing instruction word %q: %w", line, err)
		}
		block.Instructions = append(block.Instructions, instrument.Instruction{
			VirtualAddress: addr,
			SizeInBytes:    4,
			Word:           word,
		})
		addr += 4
	}
	flush()
	return scanner.Err()
}

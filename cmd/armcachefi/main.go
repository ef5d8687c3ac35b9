// Package main provides the entry point for armcachefi, a dynamic
// binary-instrumentation cache simulator and soft-error fault-injection
// controller for a 32-bit ARM v7-A guest.
//
// It expects to be installed the way a QEMU TCG plugin is: positional
// arguments name the guest .text window, the fault-injection controller's
// TCP endpoint, and whether injection is armed at all. Since this program
// has no real emulator to attach to, it reads the guest instruction stream
// as one hex-encoded 32-bit word per line on stdin, in program order, and
// treats runs of words between blank lines as basic blocks — a synthetic
// host harness standing in for a real plugin's block-translation hook.
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
	"github.com/sarchlab/armcachefi/control"
	"github.com/sarchlab/armcachefi/cycles"
	"github.com/sarchlab/armcachefi/instrument"
)

type config struct {
	textBegin uint32
	textEnd   uint32
	port      int
	hostname  string
	doInject  bool
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "armcachefi: %v\n", err)
		fmt.Fprintf(os.Stderr, "usage: armcachefi textBegin textEnd [portNum hostname doInject]\n")
		exit(err)
	}

	hier := cache.NewHierarchy(cache.DefaultICacheConfig(), cache.DefaultDCacheConfig(), cache.DefaultL2Config())
	ledger := cycles.NewLedger()

	var injector *control.InjectionController
	var channel *control.Channel
	if cfg.doInject {
		channel, err = control.Dial(cfg.hostname, cfg.port)
		if err != nil {
			fmt.Fprintf(os.Stderr, "armcachefi: connecting to controller: %v\n", err)
			os.Exit(1)
		}
		defer channel.Close()
		injector, err = control.NewInjectionController(true, channel, os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "armcachefi: negotiating injection plan: %v\n", err)
			os.Exit(1)
		}
	}

	ctrl := instrument.New(hier, ledger, injector, cfg.textBegin, cfg.textEnd, nil, nil)

	if err := runBlocks(os.Stdin, ctrl); err != nil {
		fmt.Fprintf(os.Stderr, "armcachefi: %v\n", err)
		exit(err)
	}

	reportStats(os.Stdout, "icache", hier.ICache.Stats())
	reportStats(os.Stdout, "dcache", hier.DCache.Stats())
	reportStats(os.Stdout, "l2cache", hier.L2.Stats())
}

// parseArgs validates the positional argument surface: the first two are
// always required; the remaining three are required only when doInject is
// requested. Every rejection is a *configerr.ConfigError: a bad argument is
// a reason to refuse to install, not a runtime condition.
func parseArgs(args []string) (config, error) {
	if len(args) < 2 {
		return config{}, configerr.New("args", "expected at least textBegin and textEnd")
	}

	textBegin, err := parseHex32(args[0])
	if err != nil {
		return config{}, configerr.Newf("textBegin", "%v", err)
	}
	textEnd, err := parseHex32(args[1])
	if err != nil {
		return config{}, configerr.Newf("textEnd", "%v", err)
	}

	cfg := config{textBegin: textBegin, textEnd: textEnd}

	if len(args) == 2 {
		return cfg, nil
	}
	if len(args) < 5 {
		return config{}, configerr.New("args", "portNum, hostname and doInject are required together")
	}

	port, err := strconv.Atoi(args[2])
	if err != nil {
		return config{}, configerr.Newf("portNum", "%v", err)
	}
	hostname := args[3]

	doInjectVal, err := strconv.Atoi(args[4])
	if err != nil || (doInjectVal != 0 && doInjectVal != 1) {
		return config{}, configerr.New("doInject", "must be 0 or 1")
	}

	cfg.port = port
	cfg.hostname = hostname
	cfg.doInject = doInjectVal == 1
	return cfg, nil
}

// exit terminates with a status chosen by err's type (the caller has already
// printed it): a *configerr.ConfigError exits 2 (refuse to install),
// anything else exits 1 (a runtime condition).
func exit(err error) {
	var cfgErr *configerr.ConfigError
	if errors.As(err, &cfgErr) {
		os.Exit(2)
	}
	os.Exit(1)
}

func parseHex32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// runBlocks reads one hex instruction word per line, with blank lines
// separating basic blocks, and drives ctrl accordingly.
func runBlocks(r *os.File, ctrl *instrument.Controller) error {
	scanner := bufio.NewScanner(r)
	addr := ctrl.TextBegin
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

func reportStats(w *os.File, name string, s cache.Stats) {
	fmt.Fprintf(w, "%s: hits=%d misses=%d hit-rate=%.4f miss-rate=%.4f compulsory=%d evictions=%d\n",
		name, s.LoadHits+s.StoreHits, s.LoadMisses+s.StoreMisses, s.HitRate(), s.MissRate(), s.Compulsory, s.Evictions)
}

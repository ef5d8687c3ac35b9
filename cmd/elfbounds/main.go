// Package main provides elfbounds, a convenience that prints the textBegin
// and textEnd hex values armcachefi expects as its first two positional
// arguments, resolved from a 32-bit ARM ELF binary's .text section.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sarchlab/armcachefi/configerr"
	"github.com/sarchlab/armcachefi/loader"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: elfbounds <path-to-arm32-elf>\n")
		os.Exit(2)
	}

	bounds, err := loader.ResolveTextBounds(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "elfbounds: %v\n", err)
		var cfgErr *configerr.ConfigError
		if errors.As(err, &cfgErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	fmt.Printf("0x%08X 0x%08X\n", bounds.Begin, bounds.End)
}

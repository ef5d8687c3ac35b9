// Package loader resolves the guest .text section bounds out of a 32-bit
// ARM ELF binary, the convenience the elfbounds command wraps so an operator
// does not have to compute textBegin/textEnd by hand before installing the
// core.
package loader

import (
	"debug/elf"
	"fmt"

	"github.com/sarchlab/armcachefi/configerr"
)

// TextBounds is the half-open [Begin, End) guest virtual address range of
// a binary's .text section.
type TextBounds struct {
	Begin uint32
	End   uint32
}

// ResolveTextBounds opens a 32-bit ARM ELF binary and returns its .text
// section's address range.
func ResolveTextBounds(path string) (TextBounds, error) {
	f, err := elf.Open(path)
	if err != nil {
		return TextBounds{}, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return TextBounds{}, configerr.Newf("elf path", "%s is not a 32-bit ELF file", path)
	}
	if f.Machine != elf.EM_ARM {
		return TextBounds{}, configerr.Newf("elf path", "%s is not an ARM ELF file (machine type: %v)", path, f.Machine)
	}

	section := f.Section(".text")
	if section == nil {
		return TextBounds{}, configerr.Newf("elf path", "%s has no .text section", path)
	}

	if section.Addr > 0xFFFFFFFF || section.Size > 0xFFFFFFFF {
		return TextBounds{}, configerr.Newf("elf path", "%s .text section does not fit a 32-bit guest address space", path)
	}

	begin := uint32(section.Addr)
	end := begin + uint32(section.Size)
	return TextBounds{Begin: begin, End: end}, nil
}

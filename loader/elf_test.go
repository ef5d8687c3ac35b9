package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armcachefi/loader"
)

// buildMinimalARM32ELF writes a 32-bit little-endian ARM ELF containing a
// single PROGBITS .text section at textAddr holding textData, plus the
// .shstrtab section names are resolved against.
func buildMinimalARM32ELF(path string, textAddr uint32, textData []byte) error {
	const (
		ehdrSize = 52
		shdrSize = 40
	)

	shstrtab := append([]byte{0}, []byte(".text\x00.shstrtab\x00")...)
	textNameOff := uint32(1)
	shstrtabNameOff := uint32(7)

	textOffset := uint32(ehdrSize)
	shstrtabOffset := textOffset + uint32(len(textData))
	shoff := shstrtabOffset + uint32(len(shstrtab))

	buf := make([]byte, 0, shoff+3*shdrSize)

	// e_ident
	ident := make([]byte, 16)
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4] = 1 // ELFCLASS32
	ident[5] = 1 // ELFDATA2LSB
	ident[6] = 1 // EV_CURRENT
	buf = append(buf, ident...)

	le := binary.LittleEndian
	put16 := func(v uint16) { buf = le.AppendUint16(buf, v) }
	put32 := func(v uint32) { buf = le.AppendUint32(buf, v) }

	put16(2)          // e_type = ET_EXEC
	put16(40)         // e_machine = EM_ARM
	put32(1)          // e_version
	put32(textAddr)   // e_entry
	put32(0)          // e_phoff
	put32(shoff)      // e_shoff
	put32(0)          // e_flags
	put16(ehdrSize)   // e_ehsize
	put16(0)          // e_phentsize
	put16(0)          // e_phnum
	put16(shdrSize)   // e_shentsize
	put16(3)          // e_shnum
	put16(2)          // e_shstrndx

	buf = append(buf, textData...)
	buf = append(buf, shstrtab...)

	// section 0: NULL
	for i := 0; i < shdrSize; i++ {
		buf = append(buf, 0)
	}

	// section 1: .text
	put32(textNameOff)
	put32(1)                    // SHT_PROGBITS
	put32(0x6)                  // SHF_ALLOC | SHF_EXECINSTR
	put32(textAddr)             // sh_addr
	put32(textOffset)           // sh_offset
	put32(uint32(len(textData))) // sh_size
	put32(0)
	put32(0)
	put32(4)
	put32(0)

	// section 2: .shstrtab
	put32(shstrtabNameOff)
	put32(3) // SHT_STRTAB
	put32(0)
	put32(0)
	put32(shstrtabOffset)
	put32(uint32(len(shstrtab)))
	put32(0)
	put32(0)
	put32(1)
	put32(0)

	return os.WriteFile(path, buf, 0o644)
}

var _ = Describe("ResolveTextBounds", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	It("resolves the .text section's half-open address range", func() {
		path := filepath.Join(tempDir, "test.elf")
		textData := []byte{
			0x00, 0x00, 0xa0, 0xe3, // mov r0, #0
			0x1e, 0xff, 0x2f, 0xe1, // bx lr
		}
		Expect(buildMinimalARM32ELF(path, 0x8000, textData)).To(Succeed())

		bounds, err := loader.ResolveTextBounds(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(bounds.Begin).To(Equal(uint32(0x8000)))
		Expect(bounds.End).To(Equal(uint32(0x8000 + len(textData))))
	})

	It("resolves an empty .text section to an empty range", func() {
		path := filepath.Join(tempDir, "notext.elf")
		Expect(buildMinimalARM32ELF(path, 0x8000, nil)).To(Succeed())
		// The builder always emits a .text section header, here with no
		// contents, so this resolves to an empty (Begin==End) range.
		bounds, err := loader.ResolveTextBounds(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(bounds.Begin).To(Equal(bounds.End))
	})

	It("rejects a missing file", func() {
		_, err := loader.ResolveTextBounds(filepath.Join(tempDir, "missing.elf"))
		Expect(err).To(HaveOccurred())
	})
})

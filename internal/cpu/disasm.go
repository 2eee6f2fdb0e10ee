package cpu

import (
	"fmt"
	"strings"
)

// PeekBus is the read-only view of memory disassembly needs; a *CPU's
// own Bus satisfies it, so callers can pass the same bus used for
// execution without granting write access.
type PeekBus interface {
	Read(addr uint32) uint8
}

// Disassemble decodes one instruction starting at the given extended
// address without mutating any CPU state, returning its mnemonic and
// length in bytes. It walks the same primary/extension tables Execute
// uses, per the shared-decode design note in spec §9.
func Disassemble(mem PeekBus, addr uint32) (string, int) {
	opcode := uint16(mem.Read(addr))
	prefixLen := 1

	if opcode == 0xCE || opcode == 0xCF {
		ext := uint16(mem.Read(addr + 1))
		opcode = opcode<<8 | ext
		prefixLen = 2
	}

	entry, ok := lookup(opcode)
	if !ok {
		return fmt.Sprintf("DB 0x%02X", uint8(opcode)), 1
	}

	operandBytes := make([]string, 0, entry.length-prefixLen)
	for i := prefixLen; i < entry.length; i++ {
		operandBytes = append(operandBytes, fmt.Sprintf("%02X", mem.Read(addr+uint32(i))))
	}

	mnemonic := entry.mnemonic
	if len(operandBytes) > 0 {
		mnemonic = fmt.Sprintf("%s ; bytes %s", mnemonic, strings.Join(operandBytes, " "))
	}
	return mnemonic, entry.length
}

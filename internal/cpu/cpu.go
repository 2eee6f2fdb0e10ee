// Package cpu implements the S1C88 CPU core at the heart of the
// Pokémon Mini, per spec §4.1.
//
// The overall shape -- a register file, small flag-bit helpers, and a
// table of opcode functions sharing one decode step with disassembly
// -- is grounded on jeebie/cpu/{cpu,registers,instructions,mapping}.go;
// the S1C88-specific semantics (extended banked registers, 32-source
// interrupt dispatch, BCD/unpacked ALU modes) come from
// original_source/src/min/s1c88.{h,cpp}.
package cpu

import "log/slog"

// Bus is the minimal interface the CPU needs from the memory unit.
// Kept small and stateless from the CPU's point of view so the
// Scheduler can own the concrete *bus.MMU without the CPU needing to
// know about devices, per the borrow-relationship design note in
// spec §9.
type Bus interface {
	Read(addr uint32) uint8
	Write(addr uint32, v uint8)
}

// IRQLine describes one pending interrupt source as seen by the CPU's
// pre-dispatch scan.
type IRQLine struct {
	Enabled    bool
	MasterFlag bool
	Priority   uint8
	// Vector is the address of this source's 16-bit LE pointer in the
	// vector table (source*2), not the jump destination itself --
	// dispatch reads the pointer stored there, per spec §4.1/§6.
	Vector      uint16
	AckCallback func() // clears the source's master flag, e.g. on System Reset
}

// IRQProvider supplies the CPU with the current state of all 32 IRQ
// sources, queried once per instruction before dispatch.
type IRQProvider interface {
	IRQLines() [32]IRQLine
}

// CPU is the S1C88 core.
type CPU struct {
	reg  Registers
	mem  Bus
	irqs IRQProvider

	halted          bool
	skipIRQ         bool
	illegalIsStrict bool
	Halted          func() bool // test hook, unused in production path

	currentOpcode uint16 // effective opcode, including extension prefix
}

// New creates a CPU wired to the given bus and IRQ source provider.
func New(mem Bus, irqs IRQProvider) *CPU {
	return &CPU{mem: mem, irqs: irqs}
}

// Registers exposes the register file for debug/save-state use.
func (c *CPU) Registers() *Registers { return &c.reg }

// SetIllegalOpcodeStrict toggles the §7 illegal-opcode policy: in
// strict mode an illegal opcode halts the core; in lenient mode
// (default) it is logged and execution continues as a NOP.
func (c *CPU) SetIllegalOpcodeStrict(strict bool) { c.illegalIsStrict = strict }

// Halt puts the CPU into its low-power state: Execute will return 4
// cycles without advancing PC until woken by an eligible IRQ.
func (c *CPU) Halt() { c.halted = true }

// IsHalted reports whether the CPU is currently halted.
func (c *CPU) IsHalted() bool { return c.halted }

func (c *CPU) fetch8() uint8 {
	v := c.mem.Read(c.reg.PCExtended())
	c.reg.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch8()
	hi := c.fetch8()
	return uint16(hi)<<8 | uint16(lo)
}

// dispatchCycles is the cycle cost attributed to a taken interrupt
// dispatch, matching CALL nn's push-and-jump cost (spec §4.1 doesn't
// fix an exact figure, but requires a multiple of 4).
const dispatchCycles = 20

// Execute fetches and runs one instruction, returning the number of
// CPU cycles consumed (always a multiple of 4, per spec §4.1). A
// taken interrupt dispatch counts as the instruction for this call:
// the handler's first instruction is fetched on the next Execute
// call, so PC reflects the vector exactly per spec §8's boundary case.
func (c *CPU) Execute() int {
	if c.dispatchInterrupt() {
		return dispatchCycles
	}

	if c.halted {
		return 4
	}

	logicalPC := c.reg.PC
	opcode := uint16(c.fetch8())

	if opcode == 0xCE || opcode == 0xCF {
		ext := uint16(c.fetch8())
		opcode = opcode<<8 | ext
	}
	c.currentOpcode = opcode

	entry, ok := lookup(opcode)
	if !ok {
		return c.illegalOpcode(opcode)
	}

	cycles := entry.exec(c, logicalPC)
	if cycles%4 != 0 {
		cycles += 4 - cycles%4
	}
	if cycles < 4 {
		cycles = 4
	}
	return cycles
}

func (c *CPU) illegalOpcode(opcode uint16) int {
	if c.illegalIsStrict {
		slog.Error("illegal opcode, halting core", "opcode", opcode, "pc", c.reg.PC)
		c.halted = true
		return 4
	}
	slog.Warn("illegal opcode, ignoring", "opcode", opcode, "pc", c.reg.PC)
	return 4
}

// markPrivileged arms the skip_irq latch for exactly the next
// instruction, per spec §4.1's "Privileged operations": writes to SC,
// NB, CB, EP, XP, YP, or POP into SC/CB defer IRQ dispatch by one
// instruction.
func (c *CPU) markPrivileged() { c.skipIRQ = true }

// readVector reads the 16-bit little-endian pointer stored at addr in
// the IRQ vector table (spec §3/§6: the first 64 bytes of the loaded
// image are 32 two-byte LE vectors, one per source). Dispatch jumps to
// the value stored there, not to addr itself.
func (c *CPU) readVector(addr uint16) uint16 {
	lo := c.mem.Read(uint32(addr))
	hi := c.mem.Read(uint32(addr) + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// dispatchInterrupt implements spec §4.1's pre-execute interrupt scan:
// for priority p = 3..(mask+1), scan sources 0..31 and dispatch the
// first enabled, flagged source at that priority. It reports whether a
// source was dispatched, so Execute can treat the dispatch itself as
// the instruction for this call -- spec §8's "within one instruction:
// PC equals IRQ vector [A]" requires PC to land exactly on the
// handler's entry point, not on whatever happens to follow it.
func (c *CPU) dispatchInterrupt() bool {
	if c.skipIRQ {
		c.skipIRQ = false
		return false
	}
	if c.irqs == nil {
		return false
	}

	lines := c.irqs.IRQLines()
	mask := c.reg.Mask()

	for p := uint8(3); p > mask; p-- {
		for src := 0; src < 32; src++ {
			line := lines[src]
			if !line.Enabled || !line.MasterFlag || line.Priority != p {
				continue
			}
			c.halted = false

			if src == 0 {
				// System Reset: no stack push, just clear and jump.
				if line.AckCallback != nil {
					line.AckCallback()
				}
				c.reg.CB = 0
				c.reg.PC = c.readVector(line.Vector)
				return true
			}

			c.pushStack()
			c.reg.CB = 0
			c.reg.SetMask(3)
			c.reg.PC = c.readVector(line.Vector)
			return true
		}
	}
	return false
}

// pushStack pushes CB, PC (high byte first), then SC, per spec §3's
// invariant "Interrupt dispatch preserves SC, PC, and CB on stack in
// that order (high byte of PC first)" -- read in execution order this
// means CB is pushed first (deepest), then PC hi/lo, then SC (on top).
func (c *CPU) pushStack() {
	c.push8(c.reg.CB)
	c.push8(uint8(c.reg.PC >> 8))
	c.push8(uint8(c.reg.PC))
	c.push8(c.reg.SC)
}

// RETE pops SC, then PC, then CB -- per spec §3's invariant "After
// RETE, SC is restored before PC and CB."
func (c *CPU) RETE() {
	c.reg.SC = c.pop8()
	lo := c.pop8()
	hi := c.pop8()
	c.reg.PC = uint16(hi)<<8 | uint16(lo)
	c.reg.CB = c.pop8()
	c.markPrivileged()
}

func (c *CPU) push8(v uint8) {
	c.reg.SP--
	c.mem.Write(uint32(c.reg.SP), v)
}

func (c *CPU) pop8() uint8 {
	v := c.mem.Read(uint32(c.reg.SP))
	c.reg.SP++
	return v
}

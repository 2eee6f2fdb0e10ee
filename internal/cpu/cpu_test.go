package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// flatBus is a minimal Bus backing a 21-bit byte array, enough to
// exercise the CPU in isolation without internal/bus's MMIO routing.
type flatBus struct {
	mem [0x200000]uint8
}

func (b *flatBus) Read(addr uint32) uint8    { return b.mem[addr&0x1FFFFF] }
func (b *flatBus) Write(addr uint32, v uint8) { b.mem[addr&0x1FFFFF] = v }

func newTestCPU() (*CPU, *flatBus) {
	bus := &flatBus{}
	return New(bus, nil), bus
}

func TestCPU_NOP(t *testing.T) {
	c, bus := newTestCPU()
	bus.mem[0] = 0x00

	cycles := c.Execute()

	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(1), c.reg.PC)
}

func TestCPU_IncDecFlags(t *testing.T) {
	c, bus := newTestCPU()
	bus.mem[0] = 0x0D // DEC B
	c.reg.B = 0x01

	c.Execute()

	assert.Equal(t, uint8(0), c.reg.B)
	assert.True(t, c.reg.Flag(FlagZ))
}

func TestCPU_LoadImmediateAndAdd(t *testing.T) {
	c, bus := newTestCPU()
	// LD A,#nn ; ADD A,B
	bus.mem[0] = 0x10
	bus.mem[1] = 0x05
	bus.mem[2] = 0x21

	c.reg.B = 0x03
	c.Execute()
	c.Execute()

	assert.Equal(t, uint8(0x08), c.reg.A)
}

func TestCPU_UnpackedAddCarriesAtNibble(t *testing.T) {
	c, _ := newTestCPU()
	c.reg.SetFlag(FlagU, true)

	result := c.add8(0x0F, 0x01, false)

	assert.Equal(t, uint8(0x00), result)
	assert.True(t, c.reg.Flag(FlagC))
	assert.True(t, c.reg.Flag(FlagZ))
}

func TestCPU_UnpackedAddSetsNFromNibbleSignBit(t *testing.T) {
	c, _ := newTestCPU()
	c.reg.SetFlag(FlagU, true)

	result := c.add8(0x07, 0x01, false)

	assert.Equal(t, uint8(0x08), result)
	assert.False(t, c.reg.Flag(FlagZ))
	assert.True(t, c.reg.Flag(FlagN))
	assert.True(t, c.reg.Flag(FlagV))
	assert.False(t, c.reg.Flag(FlagC))
}

func TestCPU_DecimalAddWrapsAtOneHundred(t *testing.T) {
	c, _ := newTestCPU()
	c.reg.SetFlag(FlagD, true)

	result := c.add8(0x99, 0x01, false)

	assert.Equal(t, uint8(0x00), result)
	assert.True(t, c.reg.Flag(FlagC))
}

func TestCPU_Div16ByZeroLeavesDividendAndReportsFailure(t *testing.T) {
	c, _ := newTestCPU()

	result, ok := c.div16(0x1234, 0)

	assert.False(t, ok)
	assert.Equal(t, uint16(0x1234), result)
}

func TestCPU_Div16QuotientOverflowSetsOverflowFlag(t *testing.T) {
	c, _ := newTestCPU()

	_, ok := c.div16(0xFF00, 1)

	assert.False(t, ok)
	assert.True(t, c.reg.Flag(FlagV))
}

func TestCPU_HaltReturnsFourCyclesWithoutAdvancing(t *testing.T) {
	c, bus := newTestCPU()
	bus.mem[0] = 0x01 // HALT
	bus.mem[1] = 0x00 // NOP, should never be fetched while halted

	c.Execute()
	assert.True(t, c.IsHalted())
	pcAfterHalt := c.reg.PC

	cycles := c.Execute()
	assert.Equal(t, 4, cycles)
	assert.Equal(t, pcAfterHalt, c.reg.PC)
}

// stubIRQ implements IRQProvider with a single programmable line.
type stubIRQ struct {
	lines [32]IRQLine
}

func (s *stubIRQ) IRQLines() [32]IRQLine { return s.lines }

func TestCPU_InterruptDispatchPushesCBThenPCThenSC(t *testing.T) {
	bus := &flatBus{}
	irqs := &stubIRQ{}
	// Vector is the *address* of source 5's 16-bit LE pointer (spec
	// §3/§6), not the handler address itself: 0x000A holds a pointer
	// to the real handler entry point, 0x0123.
	irqs.lines[5] = IRQLine{Enabled: true, MasterFlag: true, Priority: 3, Vector: 0x000A}
	bus.mem[0x000A] = 0x23
	bus.mem[0x000B] = 0x01

	c := New(bus, irqs)
	c.reg.SP = 0x2000
	c.reg.PC = 0x0050
	c.reg.CB = 0x02
	c.reg.SetMask(0)
	bus.mem[0x0050] = 0x00 // NOP, not reached this tick: IRQ wins pre-dispatch

	c.Execute()

	assert.Equal(t, uint16(0x0123), c.reg.PC)
	assert.Equal(t, uint8(0), c.reg.CB)
	assert.Equal(t, uint8(3), c.reg.Mask())

	// CB is pushed first (deepest), SC last; the pushed SC is the
	// pre-dispatch value, before the mask was raised.
	cb := bus.Read(0x2000 - 1)
	pcHi := bus.Read(0x2000 - 2)
	pcLo := bus.Read(0x2000 - 3)
	sc := bus.Read(0x2000 - 4)
	assert.Equal(t, uint8(0x00), sc)
	assert.Equal(t, uint8(0x50), pcLo)
	assert.Equal(t, uint8(0x00), pcHi)
	assert.Equal(t, uint8(0x02), cb)
}

func TestCPU_SystemResetSkipsStackPush(t *testing.T) {
	bus := &flatBus{}
	irqs := &stubIRQ{}
	acked := false
	irqs.lines[0] = IRQLine{
		Enabled: true, MasterFlag: true, Priority: 3, Vector: 0x0000,
		AckCallback: func() { acked = true },
	}

	c := New(bus, irqs)
	c.reg.SP = 0x2000

	c.Execute()

	assert.True(t, acked)
	assert.Equal(t, uint16(0x2000), c.reg.SP, "system reset must not push the stack")
}

func TestCPU_PrivilegedWriteDefersNextInterrupt(t *testing.T) {
	bus := &flatBus{}
	irqs := &stubIRQ{}
	irqs.lines[5] = IRQLine{Enabled: true, MasterFlag: false, Priority: 3, Vector: 0x0123}

	c := New(bus, irqs)
	c.reg.SP = 0x2000
	bus.mem[0] = 0xA3 // LD CB,A, privileged
	bus.mem[1] = 0x00 // NOP

	c.Execute()

	assert.Equal(t, uint16(1), c.reg.PC, "privileged write executes before the deferred IRQ fires")

	// The IRQ becomes pending right after the privileged write; it is
	// held off for one instruction, so the NOP runs instead.
	irqs.lines[5].MasterFlag = true
	c.Execute()

	assert.Equal(t, uint16(2), c.reg.PC, "pending IRQ deferred by one instruction")
	assert.Equal(t, uint16(0x2000), c.reg.SP)
}

func TestCPU_RETERestoresSCBeforePCAndCB(t *testing.T) {
	c, bus := newTestCPU()
	c.reg.SP = 0x2000
	c.push8(0x02) // CB
	c.push8(0x00) // PC hi
	c.push8(0x99) // PC lo
	c.push8(0x40) // SC
	_ = bus

	c.RETE()

	assert.Equal(t, uint8(0x40), c.reg.SC)
	assert.Equal(t, uint16(0x0099), c.reg.PC)
	assert.Equal(t, uint8(0x02), c.reg.CB)
}

func TestCPU_TakenJumpAdoptsCBFromNB(t *testing.T) {
	c, bus := newTestCPU()
	c.reg.NB = 0x03
	bus.mem[0] = 0x70 // JP nn
	bus.mem[1] = 0x00
	bus.mem[2] = 0x20

	c.Execute()

	assert.Equal(t, uint16(0x2000), c.reg.PC)
	assert.Equal(t, uint8(0x03), c.reg.CB, "CB must adopt NB on a taken branch")
}

func TestCPU_TakenCallAdoptsCBFromNB(t *testing.T) {
	c, bus := newTestCPU()
	c.reg.SP = 0x2000
	c.reg.NB = 0x01
	bus.mem[0] = 0x80 // CALL nn
	bus.mem[1] = 0x00
	bus.mem[2] = 0x30

	c.Execute()

	assert.Equal(t, uint16(0x3000), c.reg.PC)
	assert.Equal(t, uint8(0x01), c.reg.CB)
}

func TestCPU_JRUsesLogicalPCNotPostOperandPC(t *testing.T) {
	c, bus := newTestCPU()
	c.reg.PC = 0x10
	bus.mem[0x10] = 0x88 // JR d
	bus.mem[0x11] = 0x05

	c.Execute()

	// Displacement is relative to the opcode's own address (0x10),
	// not the address after the displacement byte was fetched (0x12).
	assert.Equal(t, uint16(0x15), c.reg.PC)
}

func TestDisassembleSharesDecodeTable(t *testing.T) {
	bus := &flatBus{}
	bus.mem[0x10] = 0x10 // LD A,#nn
	bus.mem[0x11] = 0x42

	text, length := Disassemble(bus, 0x10)

	assert.Equal(t, 2, length)
	assert.Contains(t, text, "LD A,#nn")
	assert.Contains(t, text, "42")
}

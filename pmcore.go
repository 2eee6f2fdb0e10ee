// Package pmcore ties the CPU, bus, and every peripheral into a
// runnable Pokémon Mini machine: it owns the scheduler loop that
// clocks every device from the CPU's own reported cycle counts, per
// spec §2's C1-C9 module boundary and §8's emulation loop shape.
//
// The Machine/Config split and the cycles-executed-this-step
// scheduling loop are grounded on jeebie/core.go's Emulator: a single
// struct owning CPU+GPU+MMU, a RunUntilFrame method that loops
// cpu.Tick() and feeds the returned cycle count to every other device,
// accumulating against a fixed per-frame cycle budget.
package pmcore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pokemini/pmcore/internal/apu"
	"github.com/pokemini/pmcore/internal/bus"
	"github.com/pokemini/pmcore/internal/cpu"
	"github.com/pokemini/pmcore/internal/netplay"
	"github.com/pokemini/pmcore/internal/savestate"
)

// cyclesPerFrame is pmcore's chosen frame cycle budget: the CPU runs
// at 4 MHz and the PRC paces itself off an ~856-cycle step (see
// internal/prc), giving roughly 75 PRC steps and a 60 Hz-ish frame
// rate at this budget, matching the teacher's own 70224-cycle
// Game-Boy-derived per-frame constant in spirit (a fixed cycle budget
// per RunFrame call) without copying its numeric value, which is
// specific to the Game Boy's 4.194304 MHz clock and 154-line display.
const cyclesPerFrame = 64000

// Config holds everything a Machine needs at construction time, kept
// as plain data so cmd/pmcore's CLI flag parsing never reaches into
// the core package directly, mirroring the teacher's cli.Context ->
// constructor-argument flow.
type Config struct {
	BIOS    []uint8
	ROM     []uint8
	EEPROM  []uint8   // optional; zero-length means "start unprogrammed"
	RTCTime time.Time // stamped into the EEPROM's trailing RTC bytes on load

	SampleRate int // APU host sample rate in Hz; 0 defaults to 44100

	IllegalOpcodeStrict bool // halt (true) or warn-and-continue (false) on illegal opcodes
}

// Machine is the complete, runnable Pokémon Mini emulation core.
type Machine struct {
	cpu *cpu.CPU
	bus *bus.MMU

	netplay *netplay.Link

	frameCount       uint64
	instructionCount uint64
}

// New constructs a Machine from cfg. BIOS and ROM may each be empty:
// an empty BIOS leaves the BIOS region reading 0xFF, and an empty ROM
// leaves cartridge space unloaded (the teacher's NewWithFile instead
// requires a ROM for a Game Boy). An EEPROM image that fails to load
// is logged and the EEPROM starts unprogrammed.
func New(cfg Config) (*Machine, error) {
	b := bus.New()

	if err := b.LoadBIOS(cfg.BIOS); err != nil {
		return nil, fmt.Errorf("pmcore: load BIOS: %w", err)
	}
	if len(cfg.ROM) > 0 {
		if err := b.LoadCartridge(cfg.ROM); err != nil {
			return nil, fmt.Errorf("pmcore: load cartridge: %w", err)
		}
	}

	rtc := cfg.RTCTime
	if rtc.IsZero() {
		rtc = time.Unix(0, 0).UTC()
	}
	if err := b.EEPROM.Load(cfg.EEPROM, rtc); err != nil {
		slog.Warn("pmcore: EEPROM image rejected, starting unprogrammed", "error", err)
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 44100
	}
	if sampleRate != 44100 {
		b.APU = apu.New(sampleRate)
	}

	c := cpu.New(b, b)
	c.SetIllegalOpcodeStrict(cfg.IllegalOpcodeStrict)

	slog.Info("machine initialized", "bios_size", len(cfg.BIOS), "rom_size", len(cfg.ROM))

	return &Machine{cpu: c, bus: b}, nil
}

// Step executes exactly one CPU instruction and clocks every other
// device by the cycles it reported, per spec §8's scheduler contract.
// It returns the number of cycles executed.
func (m *Machine) Step() int {
	cycles := m.cpu.Execute()
	m.bus.Tick(uint32(cycles))
	m.instructionCount++
	return cycles
}

// RunFrame executes instructions until at least one frame's worth of
// cycles (cyclesPerFrame) has elapsed, mirroring
// jeebie/core.go:Emulator.RunUntilFrame's accumulate-until-budget loop.
func (m *Machine) RunFrame() {
	total := 0
	for total < cyclesPerFrame {
		total += m.Step()
	}
	m.frameCount++
	if m.frameCount%60 == 0 {
		slog.Debug("frame completed", "frame", m.frameCount, "instructions", m.instructionCount)
	}
}

// RunCycles executes instructions until at least n cycles have
// elapsed, for callers (headless runners, tests) that want a cycle
// budget rather than whole frames.
func (m *Machine) RunCycles(n int) {
	total := 0
	for total < n {
		total += m.Step()
	}
}

// SetKey forwards a key press/release edge to the bus, mirroring the
// teacher's Emulator.HandleKeyPress/HandleKeyRelease naming collapsed
// into one edge-triggered call.
func (m *Machine) SetKey(k bus.Key, pressed bool) {
	m.bus.SetKey(k, pressed)
}

// RumbleActive reports the current state of the rumble-motor output
// bit; driving a physical motor is out of scope.
func (m *Machine) RumbleActive() bool { return m.bus.RumbleActive() }

// Framebuffer returns the live GDDRAM contents as a flat, page-major
// byte slice (8 pages * 96 columns), ready for a frontend to blit.
func (m *Machine) Framebuffer() []uint8 { return m.bus.PRC.GDDRAM }

// DisplayOn reports whether the LCD panel is currently powered on.
func (m *Machine) DisplayOn() bool { return m.bus.LCD.On() }

// InstructionCount returns the total number of CPU instructions
// executed since construction.
func (m *Machine) InstructionCount() uint64 { return m.instructionCount }

// FrameCount returns the total number of RunFrame calls completed.
func (m *Machine) FrameCount() uint64 { return m.frameCount }

// EEPROMDirty reports whether the EEPROM has unsaved changes.
func (m *Machine) EEPROMDirty() bool { return m.bus.EEPROM.Dirty() }

// DumpEEPROM returns a copy of the current EEPROM contents, for a
// caller to persist to a save file, clearing the dirty flag.
func (m *Machine) DumpEEPROM() []uint8 {
	data := m.bus.EEPROM.Dump()
	m.bus.EEPROM.ClearDirty()
	return data
}

// AttachNetplay wires a netplay transport into the machine's IR link,
// so every IR bit this core transmits is mirrored to the remote peer
// and every bit the peer sends is received as if over infrared.
func (m *Machine) AttachNetplay(link *netplay.Link) {
	m.netplay = link
	m.bus.IRLink.Remote = func(bit bool) {
		if err := link.SendIRBit(bit); err != nil {
			slog.Warn("netplay: failed to forward IR bit", "error", err)
		}
	}
}

// PollNetplay drains at most one queued IR bit from the attached
// netplay peer, applying it to the local IR receiver. It is a no-op
// if no netplay link is attached.
func (m *Machine) PollNetplay() {
	if m.netplay == nil {
		return
	}
	bit, ok, err := m.netplay.PollIRBit(time.Now().Add(time.Millisecond))
	if err != nil {
		slog.Warn("netplay: poll failed", "error", err)
		return
	}
	if ok {
		m.bus.IRLink.Receive(bit)
	}
}

// SaveState captures the CPU registers, the four timers and the EEPROM
// for persistence. RAM, the PRC counter and the LCD page/column are
// not captured; those State fields are left zero.
func (m *Machine) SaveState() *savestate.State {
	reg := m.cpu.Registers()
	state := &savestate.State{
		CPU: savestate.CPUState{
			A: reg.A, B: reg.B, H: reg.H, L: reg.L,
			BR: reg.BR, SC: uint8(reg.SC), CC: reg.CC,
			EP: reg.EP, XP: reg.XP, YP: reg.YP, NB: reg.NB, CB: reg.CB,
			SP: reg.SP, PC: reg.PC, IX: reg.IX, IY: reg.IY,
		},
		Timer1:   savestate.CaptureTimer(m.bus.Timer1),
		Timer2:   savestate.CaptureTimer(m.bus.Timer2),
		Timer3:   savestate.CaptureTimer(m.bus.Timer3),
		Timer256: savestate.CaptureTimer(m.bus.Timer256),
	}
	copy(state.EEPROM[:], m.bus.EEPROM.Dump())
	return state
}

// LoadState restores, in place, the parts of a state that SaveState
// captures: CPU registers, the four timers and the EEPROM.
func (m *Machine) LoadState(state *savestate.State) {
	reg := m.cpu.Registers()
	reg.A, reg.B, reg.H, reg.L = state.CPU.A, state.CPU.B, state.CPU.H, state.CPU.L
	reg.BR, reg.SC, reg.CC = state.CPU.BR, state.CPU.SC, state.CPU.CC
	reg.EP, reg.XP, reg.YP = state.CPU.EP, state.CPU.XP, state.CPU.YP
	reg.NB, reg.CB = state.CPU.NB, state.CPU.CB
	reg.SP, reg.PC, reg.IX, reg.IY = state.CPU.SP, state.CPU.PC, state.CPU.IX, state.CPU.IY

	savestate.RestoreTimer(m.bus.Timer1, state.Timer1)
	savestate.RestoreTimer(m.bus.Timer2, state.Timer2)
	savestate.RestoreTimer(m.bus.Timer3, state.Timer3)
	savestate.RestoreTimer(m.bus.Timer256, state.Timer256)

	if err := m.bus.EEPROM.Restore(state.EEPROM[:]); err != nil {
		slog.Warn("pmcore: failed to restore EEPROM from save state", "error", err)
	}
}

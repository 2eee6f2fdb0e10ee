// Package bus implements the Pokémon Mini's 21-bit memory map and
// memory-mapped I/O: BIOS, RAM, cartridge ROM, the 32-source IRQ
// priority/enable/active state, and the register-level wiring between
// the CPU and every other device, per spec §3 and §4.2.
//
// Read and Write dispatch with direct address-range comparisons
// (BIOS, RAM/register window, cartridge) rather than the region table
// of jeebie/memory/mem.go's regionMap/Read/Write shape, over the
// Pokémon Mini's flat, mirrored 21-bit space (no bank switching:
// spec's Non-goals and the PM hardware itself have no MBC equivalent).
package bus

import (
	"fmt"
	"log/slog"

	"github.com/pokemini/pmcore/internal/addr"
	"github.com/pokemini/pmcore/internal/apu"
	"github.com/pokemini/pmcore/internal/bit"
	"github.com/pokemini/pmcore/internal/cpu"
	"github.com/pokemini/pmcore/internal/eeprom"
	"github.com/pokemini/pmcore/internal/irlink"
	"github.com/pokemini/pmcore/internal/lcd"
	"github.com/pokemini/pmcore/internal/prc"
	"github.com/pokemini/pmcore/internal/timer"
)

// Key identifies one of the Pokémon Mini's physical keys for SetKey,
// per spec §4.2's keypad row.
type Key uint8

const (
	KeyUp Key = iota
	KeyDown
	KeyLeft
	KeyRight
	KeyA
	KeyB
	KeyC
	KeyPower
	KeyShake
)

// MMU is the Pokémon Mini's memory management unit: the CPU's Bus and
// IRQProvider, and the owner of every other device.
type MMU struct {
	bios []uint8 // up to 0x1000 bytes
	cart []uint8 // cartridge ROM, mirrored across CartStart-CartEnd
	ram  [addr.RAMEnd - addr.RAMStart + 1]uint8

	Timer1, Timer2, Timer3 *timer.Timer
	Timer256               *timer.Timer
	PRC                     *prc.PRC
	LCD                     *lcd.Controller
	APU                     *apu.APU
	EEPROM                  *eeprom.EEPROM
	IRLink                  *irlink.Link

	irqEnable [addr.IRQSourceCount]bool
	irqActive [addr.IRQSourceCount]bool
	irqPri    [addr.IRQSourceCount]uint8

	keypad uint16 // one bit per Key, 1 = pressed

	ioDir  uint8
	ioData uint8

	timer3Preset uint8

	audioEnablePin bool
}

// New constructs an MMU with every device wired and a default,
// internally-consistent IRQ priority assignment (see internal/addr).
func New() *MMU {
	m := &MMU{}
	m.ram = [addr.RAMEnd - addr.RAMStart + 1]uint8{}

	m.Timer1 = &timer.Timer{}
	m.Timer2 = &timer.Timer{}
	m.Timer3 = &timer.Timer{}
	m.Timer256 = timer.NewFixed256()
	m.Timer256.EnableLo = true

	m.PRC = prc.New()
	m.PRC.Source = m
	m.PRC.GDDRAM = m.ram[addr.GDDRAMStart-addr.RAMStart : addr.GDDRAMStart-addr.RAMStart+addr.GDDRAMSize]
	m.PRC.OAM = m.ram[addr.OAMBase-addr.RAMStart : addr.OAMBase-addr.RAMStart+addr.OAMEntries*addr.OAMEntrySize]

	m.LCD = lcd.New()
	m.LCD.GDDRAM = m.PRC.GDDRAM

	m.APU = apu.New(44100)
	m.EEPROM = eeprom.New()
	m.IRLink = irlink.New()

	m.wireIRQCallbacks()
	return m
}

func (m *MMU) wireIRQCallbacks() {
	raise := func(src addr.Interrupt) timer.IRQRaiser {
		return func() { m.irqActive[src] = true }
	}
	m.Timer1.OnUnderflowLo = raise(addr.IRQTimer1Lo)
	m.Timer1.OnUnderflowHi = raise(addr.IRQTimer1Hi)
	m.Timer2.OnUnderflowLo = raise(addr.IRQTimer2Lo)
	m.Timer2.OnUnderflowHi = raise(addr.IRQTimer2Hi)
	m.Timer3.OnUnderflowLo = raise(addr.IRQTimer3Lo)
	m.Timer3.OnUnderflowHi = raise(addr.IRQTimer3Hi)
	m.Timer3.OnPivot = raise(addr.IRQTimer3Pivot)
	m.Timer256.OnRate1Hz = raise(addr.IRQTimer256Hz1)
	m.Timer256.OnRate2Hz = raise(addr.IRQTimer256Hz2)
	m.Timer256.OnRate8Hz = raise(addr.IRQTimer256Hz8)
	m.Timer256.OnRate32Hz = raise(addr.IRQTimer256Hz32)

	m.PRC.OnCopy = func() { m.irqActive[addr.IRQPRCCopy] = true }
	m.PRC.OnRender = func() { m.irqActive[addr.IRQPRCRender] = true }

	m.IRLink.OnReceiveEdge = func() { m.irqActive[addr.IRQIRReceiver] = true }

	// Default priority assignment: system reset always highest: 3.
	for i := range m.irqPri {
		m.irqPri[i] = 2
	}
	m.irqPri[addr.IRQSystemReset] = 3
}

// LoadBIOS installs the boot ROM image.
func (m *MMU) LoadBIOS(data []uint8) error {
	if len(data) > int(addr.BIOSEnd-addr.BIOSStart+1) {
		return fmt.Errorf("bus: BIOS image too large: %d bytes", len(data))
	}
	m.bios = append([]uint8(nil), data...)
	return nil
}

// LoadCartridge installs cartridge ROM data, mirrored across the
// cartridge address window if shorter than it, per spec §4.2.
func (m *MMU) LoadCartridge(data []uint8) error {
	if len(data) == 0 {
		return fmt.Errorf("bus: empty cartridge image")
	}
	m.cart = append([]uint8(nil), data...)
	return nil
}

// Read implements cpu.Bus and prc.MemReader.
func (m *MMU) Read(a uint32) uint8 {
	a &= addr.AddressSpaceSize - 1

	switch {
	case a <= addr.BIOSEnd:
		if int(a) < len(m.bios) {
			return m.bios[a]
		}
		return 0xFF
	case a <= addr.RAMEnd:
		return m.readMMIO(a)
	default:
		return m.readCart(a)
	}
}

func (m *MMU) readCart(a uint32) uint8 {
	if len(m.cart) == 0 {
		slog.Warn("read from cartridge space with no cartridge loaded", "addr", fmt.Sprintf("0x%06X", a))
		return 0xFF
	}
	off := int(a-addr.CartStart) % len(m.cart)
	return m.cart[off]
}

// Write implements cpu.Bus.
func (m *MMU) Write(a uint32, v uint8) {
	a &= addr.AddressSpaceSize - 1

	switch {
	case a <= addr.BIOSEnd:
		slog.Warn("write to BIOS region ignored", "addr", fmt.Sprintf("0x%06X", a))
	case a <= addr.RAMEnd:
		m.writeMMIO(a, v)
	default:
		slog.Warn("write to cartridge ROM ignored", "addr", fmt.Sprintf("0x%06X", a))
	}
}

// readMMIO dispatches a read within the RAM/register window. Plain RAM
// bytes (including the GDDRAM and OAM windows PRC/LCD share directly)
// are backed by m.ram; registers with side effects are special-cased.
func (m *MMU) readMMIO(a uint32) uint8 {
	switch a {
	case addr.PRC_CNT:
		return m.PRC.Counter
	case addr.MIN_LCD_DATA:
		return m.LCD.ReadData()
	case addr.PM_KEYPAD:
		return uint8(m.keypad)
	case addr.IRQ_ACT_1, addr.IRQ_ACT_2, addr.IRQ_ACT_3, addr.IRQ_ACT_4:
		return m.readIRQBank(m.irqActive, a, addr.IRQ_ACT_1)
	case addr.IRQ_ENA_1, addr.IRQ_ENA_2, addr.IRQ_ENA_3, addr.IRQ_ENA_4:
		return m.readIRQBank(m.irqEnable, a, addr.IRQ_ENA_1)
	case addr.TIMER1_LO:
		return bit.Low(m.Timer1.Counter)
	case addr.TIMER1_HI:
		return bit.High(m.Timer1.Counter)
	case addr.TIMER2_LO:
		return bit.Low(m.Timer2.Counter)
	case addr.TIMER2_HI:
		return bit.High(m.Timer2.Counter)
	case addr.TIMER3_LO:
		return bit.Low(m.Timer3.Counter)
	case addr.TIMER3_HI:
		return bit.High(m.Timer3.Counter)
	case addr.TIMER256_CNT:
		return uint8(m.Timer256.Counter)
	default:
		return m.ram[a-addr.RAMStart]
	}
}

func (m *MMU) readIRQBank(bank [addr.IRQSourceCount]bool, a, base uint32) uint8 {
	bankIndex := a - base
	var v uint8
	for i := 0; i < 8; i++ {
		src := int(bankIndex)*8 + i
		if src < len(bank) && bank[src] {
			v |= 1 << i
		}
	}
	return v
}

func (m *MMU) writeMMIO(a uint32, v uint8) {
	switch a {
	case addr.PRC_RATE:
		m.PRC.WriteRate(v)
	case addr.PRC_SCROLL_X:
		m.PRC.ScrollX = v
	case addr.PRC_SCROLL_Y:
		m.PRC.ScrollY = v
	case addr.PRC_MODE:
		m.PRC.WriteMode(v)
	case addr.PRC_MAP_LO:
		m.PRC.WriteMapLo(v)
	case addr.PRC_MAP_MID:
		m.PRC.WriteMapMid(v)
	case addr.PRC_MAP_HI:
		m.PRC.WriteMapHi(v)
	case addr.PRC_SPR_LO:
		m.PRC.WriteSprLo(v)
	case addr.PRC_SPR_MID:
		m.PRC.WriteSprMid(v)
	case addr.PRC_SPR_HI:
		m.PRC.WriteSprHi(v)
	case addr.MIN_LCD_CNT:
		m.LCD.WriteCommand(v)
	case addr.MIN_LCD_DATA:
		m.LCD.WriteData(v)
	case addr.PM_KEYPAD:
		// read-only hardware state; ignore writes.
	case addr.PM_IO_DIR:
		m.ioDir = v
	case addr.PM_IO_DATA:
		m.writeIODataPins(v)
	case addr.PM_AUDIO_VOLUME:
		m.APU.WriteVolume(v)
	case addr.IRQ_ENA_1, addr.IRQ_ENA_2, addr.IRQ_ENA_3, addr.IRQ_ENA_4:
		m.writeIRQBank(&m.irqEnable, a, addr.IRQ_ENA_1, v)
	case addr.IRQ_ACT_1, addr.IRQ_ACT_2, addr.IRQ_ACT_3, addr.IRQ_ACT_4:
		m.clearIRQBank(a, addr.IRQ_ACT_1, v)
	case addr.IRQ_PRI_1, addr.IRQ_PRI_2, addr.IRQ_PRI_3:
		m.writePriorityBank(a, v)

	case addr.TIMER1_OSC:
		m.Timer1.WriteOsc(v, 0)
	case addr.TIMER1_SCALE:
		m.Timer1.WriteScale(v)
	case addr.TIMER1_CNT:
		m.writeTimerCnt(m.Timer1, v)
	case addr.TIMER1_LO_RL:
		m.Timer1.ReloadValue = (m.Timer1.ReloadValue &^ 0xFF) | uint16(v)
	case addr.TIMER1_HI_RL:
		m.Timer1.ReloadValue = (m.Timer1.ReloadValue & 0xFF) | uint16(v)<<8

	case addr.TIMER2_OSC:
		m.Timer2.WriteOsc(v, 0)
	case addr.TIMER2_SCALE:
		m.Timer2.WriteScale(v)
	case addr.TIMER2_CNT:
		m.writeTimerCnt(m.Timer2, v)
	case addr.TIMER2_LO_RL:
		m.Timer2.ReloadValue = (m.Timer2.ReloadValue &^ 0xFF) | uint16(v)
	case addr.TIMER2_HI_RL:
		m.Timer2.ReloadValue = (m.Timer2.ReloadValue & 0xFF) | uint16(v)<<8

	case addr.TIMER3_OSC:
		m.Timer3.WriteOsc(v, 0)
	case addr.TIMER3_SCALE:
		m.Timer3.WriteScale(v)
	case addr.TIMER3_CNT:
		m.writeTimerCnt(m.Timer3, v)
	case addr.TIMER3_LO_RL:
		m.Timer3.ReloadValue = (m.Timer3.ReloadValue &^ 0xFF) | uint16(v)
	case addr.TIMER3_HI_RL:
		m.Timer3.ReloadValue = (m.Timer3.ReloadValue & 0xFF) | uint16(v)<<8
	case addr.TIMER3_PIVOT:
		m.Timer3.Pivot = uint16(v)
	case addr.TIMER3_PRESET:
		m.timer3Preset = v
		m.APU.SetFrequency(m.Timer3.OutputFrequency(v))

	default:
		m.ram[a-addr.RAMStart] = v
	}
}

// writeTimerCnt applies a TIMERn_CNT write, handling the enable 0->1
// transition's reload-from-reload_value behavior (spec §3's invariant)
// that internal/timer.WriteCnt itself defers to its caller.
func (m *MMU) writeTimerCnt(t *timer.Timer, v uint8) {
	wasEnabled := t.EnableLo || t.EnableHi
	t.WriteCnt(v)
	nowEnabled := t.EnableLo || t.EnableHi
	if nowEnabled && !wasEnabled {
		t.Reload()
	}
}

func (m *MMU) writeIODataPins(v uint8) {
	m.ioData = v
	// pmcore's GPIO assignment: bits 0-1 are the bit-banged EEPROM
	// clock and data lines, bit 2 gates the PWM audio enable pin, bit 3
	// drives the IR transmitter and bit 4 is the rumble motor.
	scl := v&0x01 != 0
	sda := v&0x02 != 0
	m.EEPROM.Step(scl, sda)

	audioPin := v&0x04 != 0
	if audioPin != m.audioEnablePin {
		m.audioEnablePin = audioPin
		m.APU.SetEnabled(audioPin)
	}

	m.IRLink.SetOutput(v&0x08 != 0)
}

func (m *MMU) writeIRQBank(bank *[addr.IRQSourceCount]bool, a, base uint32, v uint8) {
	bankIndex := a - base
	for i := 0; i < 8; i++ {
		src := int(bankIndex)*8 + i
		if src < len(bank) {
			bank[src] = v&(1<<i) != 0
		}
	}
}

// clearIRQBank implements IRQ_ACT's write-1-to-clear semantics, per
// spec §4.2.
func (m *MMU) clearIRQBank(a, base uint32, v uint8) {
	bankIndex := a - base
	for i := 0; i < 8; i++ {
		src := int(bankIndex)*8 + i
		if src < len(m.irqActive) && v&(1<<i) != 0 {
			m.irqActive[src] = false
		}
	}
}

func (m *MMU) writePriorityBank(a uint32, v uint8) {
	// Each IRQ_PRI register packs four 2-bit priorities, one per
	// source, so IRQ_PRI_1..3 set sources 1-11 (System Reset stays at
	// 3). Sources 12-31 are not reachable through these registers and
	// keep the default priority 2.
	bankIndex := a - addr.IRQ_PRI_1
	for i := 0; i < 4; i++ {
		src := int(bankIndex)*4 + i
		if src < len(m.irqPri) && src != int(addr.IRQSystemReset) {
			m.irqPri[src] = (v >> (i * 2)) & 0x03
		}
	}
}

// SetKey updates the pressed state of a physical key, raising the
// keypad IRQ on a press edge (rising), per spec §4.2.
func (m *MMU) SetKey(k Key, pressed bool) {
	bitMask := uint16(1) << uint8(k)
	wasPressed := m.keypad&bitMask != 0
	if pressed {
		m.keypad |= bitMask
	} else {
		m.keypad &^= bitMask
	}
	if pressed && !wasPressed {
		m.irqActive[addr.IRQKeypad] = true
	}
	if k == KeyShake {
		m.irqActive[addr.IRQShake] = true
	}
}

// RumbleActive reports the rumble motor's boolean state, tracked per
// spec §4.2's documented simplification (no PWM intensity modeling).
func (m *MMU) RumbleActive() bool { return m.ioData&0x10 != 0 }

// IRQLines implements cpu.IRQProvider.
func (m *MMU) IRQLines() [addr.IRQSourceCount]cpu.IRQLine {
	var lines [addr.IRQSourceCount]cpu.IRQLine
	for i := range lines {
		lines[i] = cpu.IRQLine{
			Enabled:    m.irqEnable[i],
			MasterFlag: m.irqActive[i],
			Priority:   m.irqPri[i],
			Vector:     uint16(i) * 2, // address of this source's LE pointer, not the destination
		}
		if i == int(addr.IRQSystemReset) {
			lines[i].AckCallback = func() { m.irqActive[addr.IRQSystemReset] = false }
		}
	}
	return lines
}

// Tick advances every device owned by the bus by cycles CPU cycles,
// per spec §5's scheduler contract.
func (m *MMU) Tick(cycles uint32) {
	m.Timer1.Tick(cycles)
	m.Timer2.Tick(cycles)
	m.Timer3.Tick(cycles)
	m.Timer256.Tick(cycles)
	m.PRC.Tick(cycles)
	m.APU.Tick(cycles)
	m.IRLink.Tick(cycles)
}

// Package addr defines the Pokémon Mini's 21-bit address map, MMIO
// register addresses, and IRQ source numbering.
package addr

// Address space regions, per spec §3.
const (
	// BIOSStart is the first byte of the boot/BIOS image.
	BIOSStart uint32 = 0x000000
	// BIOSEnd is the last byte of the boot/BIOS image (inclusive).
	BIOSEnd uint32 = 0x000FFF
	// RAMStart is the first byte of the combined RAM/MMIO window.
	RAMStart uint32 = 0x001000
	// RAMEnd is the last byte of the combined RAM/MMIO window (inclusive).
	// This is also the only region MMIO writes may mutate.
	RAMEnd uint32 = 0x0020FF
	// CartStart is the first byte of cartridge ROM space.
	CartStart uint32 = 0x002100
	// CartEnd is the last addressable byte of the 21-bit space.
	CartEnd uint32 = 0x1FFFFF
	// AddressSpaceSize is the size in bytes of the full 21-bit bus.
	AddressSpaceSize uint32 = 0x200000

	// GDDRAMStart is the base of the LCD's 0x300-byte frame window.
	GDDRAMStart uint32 = 0x1000
	// GDDRAMSize is the size in bytes of the GDDRAM window (8 pages * 96 cols).
	GDDRAMSize = 0x300

	// OAMBase is the base of the 24-entry, 4-byte sprite attribute table.
	OAMBase uint32 = 0x1300
	// OAMEntrySize is the size in bytes of one sprite attribute entry.
	OAMEntrySize = 4
	// OAMEntries is the number of sprite slots.
	OAMEntries = 24
)

// ROM header layout, per spec §6.
const (
	HeaderSize  = 0x2100
	TitleOffset = 0x21B0
	TitleLen    = 12
	CodeOffset  = 0x21AC
	CodeLen     = 4
)

// MMIO register addresses. Grouped by device, following spec §4.2;
// the PM hardware interleaves these within 0x1000-0x10FF, but since
// spec.md specifies effects rather than a byte-exact layout table,
// pmcore assigns its own internally-consistent offsets (documented as
// an implementation choice in DESIGN.md).
const (
	IRQ_PRI_1 uint32 = 0x1000
	IRQ_PRI_2 uint32 = 0x1001
	IRQ_PRI_3 uint32 = 0x1002

	PRC_RATE   uint32 = 0x1003
	PRC_SCROLL_X uint32 = 0x1004
	PRC_SCROLL_Y uint32 = 0x1005
	PRC_CNT    uint32 = 0x1006 // live PRC counter, read-only
	PRC_MODE   uint32 = 0x1007

	PRC_MAP_LO uint32 = 0x1008
	PRC_MAP_MID uint32 = 0x1009
	PRC_MAP_HI uint32 = 0x100A
	PRC_SPR_LO uint32 = 0x100B
	PRC_SPR_MID uint32 = 0x100C
	PRC_SPR_HI uint32 = 0x100D

	MIN_LCD_CNT  uint32 = 0x100E
	MIN_LCD_DATA uint32 = 0x100F

	IRQ_ENA_1 uint32 = 0x1010
	IRQ_ENA_2 uint32 = 0x1011
	IRQ_ENA_3 uint32 = 0x1012
	IRQ_ENA_4 uint32 = 0x1013
	IRQ_ACT_1 uint32 = 0x1014
	IRQ_ACT_2 uint32 = 0x1015
	IRQ_ACT_3 uint32 = 0x1016
	IRQ_ACT_4 uint32 = 0x1017

	PM_KEYPAD uint32 = 0x1018
	PM_IO_DIR uint32 = 0x1019
	PM_IO_DATA uint32 = 0x101A

	SEC_CNT uint32 = 0x101B
	SEC_SEC uint32 = 0x101C
	SEC_MIN uint32 = 0x101D
	SEC_HR  uint32 = 0x101E

	PM_AUDIO_VOLUME uint32 = 0x101F

	TIMER1_OSC   uint32 = 0x1030
	TIMER1_SCALE uint32 = 0x1031
	TIMER1_CNT   uint32 = 0x1032
	TIMER1_LO    uint32 = 0x1033
	TIMER1_HI    uint32 = 0x1034
	TIMER1_LO_RL uint32 = 0x1035
	TIMER1_HI_RL uint32 = 0x1036

	TIMER2_OSC   uint32 = 0x1038
	TIMER2_SCALE uint32 = 0x1039
	TIMER2_CNT   uint32 = 0x103A
	TIMER2_LO    uint32 = 0x103B
	TIMER2_HI    uint32 = 0x103C
	TIMER2_LO_RL uint32 = 0x103D
	TIMER2_HI_RL uint32 = 0x103E

	TIMER3_OSC    uint32 = 0x1040
	TIMER3_SCALE  uint32 = 0x1041
	TIMER3_CNT    uint32 = 0x1042
	TIMER3_LO     uint32 = 0x1043
	TIMER3_HI     uint32 = 0x1044
	TIMER3_LO_RL  uint32 = 0x1045
	TIMER3_HI_RL  uint32 = 0x1046
	TIMER3_PIVOT  uint32 = 0x1047
	TIMER3_PRESET uint32 = 0x1048

	TIMER256_CNT uint32 = 0x1050

	EEPROM_LAST_ADDR = 0x1FFF // 8 KiB - 1
)

// Interrupt identifies one of the 32 prioritized IRQ sources (spec §4.1).
// Source 0 is fixed as System Reset by the invariants in spec §4.1; the
// remaining ordering is pmcore's own choice, recorded by the constants below,
// since spec.md's distillation omits the full vector appendix.
type Interrupt uint8

const (
	IRQSystemReset Interrupt = iota // 0: special, no stack push
	IRQPRCCopy
	IRQPRCRender // PRC_OVERFLOW_IRQ
	IRQTimer1Lo
	IRQTimer1Hi
	IRQTimer2Lo
	IRQTimer2Hi
	IRQTimer3Lo
	IRQTimer3Hi
	IRQTimer3Pivot
	IRQTimer256Hz1
	IRQTimer256Hz2
	IRQTimer256Hz8
	IRQTimer256Hz32
	IRQKeypad
	IRQShake
	IRQIRReceiver
	IRQRTCSec
	IRQRTCMin
	IRQRTC1Hz
	IRQCartridge
	// 21..31 reserved/unused by this implementation, still dispatchable
	// if enabled (never raised internally).
	IRQReserved21
	IRQReserved22
	IRQReserved23
	IRQReserved24
	IRQReserved25
	IRQReserved26
	IRQReserved27
	IRQReserved28
	IRQReserved29
	IRQReserved30
	IRQReserved31

	IRQSourceCount = 32
)

var irqNames = [IRQSourceCount]string{
	"SystemReset", "PRCCopy", "PRCRender",
	"Timer1Lo", "Timer1Hi", "Timer2Lo", "Timer2Hi",
	"Timer3Lo", "Timer3Hi", "Timer3Pivot",
	"Rate1Hz", "Rate2Hz", "Rate8Hz", "Rate32Hz",
	"Keypad", "Shake", "IRReceiver", "RTCSec", "RTCMin", "RTC1Hz",
	"Cartridge",
	"Reserved21", "Reserved22", "Reserved23", "Reserved24",
	"Reserved25", "Reserved26", "Reserved27", "Reserved28",
	"Reserved29", "Reserved30", "Reserved31",
}

// String names the interrupt, used by disassembly/trace logging.
func (i Interrupt) String() string {
	if int(i) < len(irqNames) {
		return irqNames[i]
	}
	return "Unknown"
}

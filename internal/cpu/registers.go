package cpu

import "github.com/pokemini/pmcore/internal/bit"

// Flag is one of the bits of the SC (status/condition) register, per
// spec §3's "Flag register SC bit layout".
type Flag uint8

const (
	FlagZ Flag = 0x01
	FlagC Flag = 0x02
	FlagV Flag = 0x04
	FlagN Flag = 0x08
	FlagD Flag = 0x10 // decimal mode
	FlagU Flag = 0x20 // unpacked (nibble) mode
	// bits 6-7 hold the IRQ priority mask threshold.
	maskShift = 6
	maskBits  = 0x03
)

// Registers is the S1C88 register file, per spec §3.
type Registers struct {
	A, B   uint8
	H, L   uint8
	BR     uint8
	SC     uint8
	CC     uint8
	EP     uint8
	XP, YP uint8
	NB     uint8
	CB     uint8

	SP uint16
	PC uint16
	IX uint16
	IY uint16
}

// BA returns the composite 16-bit view of B:A.
func (r *Registers) BA() uint16 { return bit.Combine(r.B, r.A) }

// SetBA writes the composite 16-bit view of B:A.
func (r *Registers) SetBA(v uint16) { r.B = bit.High(v); r.A = bit.Low(v) }

// HL returns the composite 16-bit view of H:L.
func (r *Registers) HL() uint16 { return bit.Combine(r.H, r.L) }

// SetHL writes the composite 16-bit view of H:L.
func (r *Registers) SetHL(v uint16) { r.H = bit.High(v); r.L = bit.Low(v) }

// PCExtended computes PC_ex per spec §3: PC<0x8000 ? PC : (PC&0x7FFF)+CB*0x8000.
func (r *Registers) PCExtended() uint32 {
	if r.PC < 0x8000 {
		return uint32(r.PC)
	}
	return uint32(r.PC&0x7FFF) + uint32(r.CB)*0x8000
}

// IXExtended computes IX_ex = XP*0x10000 + IX.
func (r *Registers) IXExtended() uint32 { return uint32(r.XP)*0x10000 + uint32(r.IX) }

// IYExtended computes IY_ex = YP*0x10000 + IY.
func (r *Registers) IYExtended() uint32 { return uint32(r.YP)*0x10000 + uint32(r.IY) }

// HLExtended computes HL_ex = EP*0x10000 + HL, per spec §3 (HL_ex and
// BR_ex share the same EP-relative page).
func (r *Registers) HLExtended() uint32 { return uint32(r.EP)*0x10000 + uint32(r.HL()) }

// BRExtended computes BR_ex = EP*0x10000 + BR.
func (r *Registers) BRExtended() uint32 { return uint32(r.EP)*0x10000 + uint32(r.BR) }

// Flag reads a single flag bit from SC.
func (r *Registers) Flag(f Flag) bool { return r.SC&uint8(f) != 0 }

// SetFlag sets or clears a single flag bit in SC.
func (r *Registers) SetFlag(f Flag, v bool) {
	if v {
		r.SC |= uint8(f)
	} else {
		r.SC &^= uint8(f)
	}
}

// Mask returns the current IRQ priority mask (bits 6-7 of SC).
func (r *Registers) Mask() uint8 {
	return (r.SC >> maskShift) & maskBits
}

// SetMask writes the IRQ priority mask (bits 6-7 of SC).
func (r *Registers) SetMask(m uint8) {
	r.SC = (r.SC &^ (maskBits << maskShift)) | ((m & maskBits) << maskShift)
}

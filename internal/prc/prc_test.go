package prc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeMem struct {
	data map[uint32]uint8
}

func (f *fakeMem) Read(addr uint32) uint8 { return f.data[addr] }

func TestPRC_TickFiresCopyIRQAtDivisor(t *testing.T) {
	p := New()
	p.Source = &fakeMem{data: map[uint32]uint8{}}
	p.GDDRAM = make([]uint8, 0x300)
	p.OAM = make([]uint8, 96)
	p.Rate = 0x01 // fast divisor (6)
	p.Mode = 0x04 // copy enable

	copies := 0
	p.OnCopy = func() { copies++ }

	for i := 0; i < 7; i++ {
		p.Tick(countTicksPerStep)
	}

	assert.Equal(t, 1, copies)
}

func TestPRC_RenderMapDrawsOpaqueTile(t *testing.T) {
	p := New()
	mem := &fakeMem{data: map[uint32]uint8{}}
	p.Source = mem
	p.GDDRAM = make([]uint8, 0x300)
	p.OAM = make([]uint8, 96)
	p.Mode = 0x01 // map enable

	// Map cell (0,0): tile index 0, no flags.
	mem.data[0] = 0x00
	mem.data[1] = 0x00
	// Tile bitmap table starts right after the 192-byte map table.
	tileBase := uint32(mapTableSize)
	for row := uint32(0); row < 8; row++ {
		mem.data[tileBase+row] = 0xFF // fully opaque row
	}

	p.Render()

	assert.Equal(t, uint8(0xFF), p.GDDRAM[0], "first column, page 0 should be fully lit")
}

func TestPRC_RenderSpriteRespectsMask(t *testing.T) {
	p := New()
	mem := &fakeMem{data: map[uint32]uint8{}}
	p.Source = mem
	p.GDDRAM = make([]uint8, 0x300)
	p.OAM = make([]uint8, 96)
	p.Mode = 0x02 // sprite enable

	p.OAM[0] = 0   // x
	p.OAM[1] = 0   // y
	p.OAM[2] = 0   // tile index
	p.OAM[3] = uint8(SpriteVisible)

	mem.data[0] = 0xFF // bitmap row 0: all on
	mem.data[8] = 0xFF // mask row 0: all transparent

	p.Render()

	assert.Equal(t, uint8(0x00), p.GDDRAM[0], "fully masked sprite row draws nothing")
}

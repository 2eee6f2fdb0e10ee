package eeprom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pulseBit(e *EEPROM, bit bool) {
	e.Step(false, bit)
	e.Step(true, bit)
}

func sendByte(e *EEPROM, b uint8) {
	for i := 7; i >= 0; i-- {
		pulseBit(e, b&(1<<uint(i)) != 0)
	}
}

func start(e *EEPROM) {
	e.Step(true, true)
	e.Step(true, false)
}

func stop(e *EEPROM) {
	e.Step(false, false)
	e.Step(true, false)
	e.Step(true, true)
}

func TestEEPROM_BitBangedWriteThenDump(t *testing.T) {
	e := New()

	start(e)
	sendByte(e, 0b00000001) // address hi: top bits 0, write flag set (LSB)
	sendByte(e, 0x05)       // address lo: full address becomes 0x0005
	pulseBit(e, false)      // ack slot
	sendByte(e, 0xAB)       // data byte
	pulseBit(e, false)      // ack slot
	stop(e)

	dump := e.Dump()
	assert.Equal(t, uint8(0xAB), dump[5])
	assert.True(t, e.Dirty())
}

func TestEEPROM_LoadPatchesTrailingRTCBytes(t *testing.T) {
	e := New()
	raw := make([]uint8, Size)

	at := time.Date(2026, time.July, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, e.Load(raw, at))

	dump := e.Dump()
	assert.Equal(t, uint8(26), dump[Size-rtcPatchLen+3]) // year%100
	assert.Equal(t, uint8(7), dump[Size-rtcPatchLen+4])  // month
	assert.Equal(t, uint8(30), dump[Size-rtcPatchLen+5]) // day
	assert.False(t, e.Dirty())
}

func TestEEPROM_LoadRejectsOversizedImage(t *testing.T) {
	e := New()
	err := e.Load(make([]uint8, Size+1), time.Now())
	assert.Error(t, err)
}

func TestEEPROM_AddressWrapsAtThirteenBits(t *testing.T) {
	e := New()

	start(e)
	sendByte(e, 0b00111111) // top address bits all set (within 5-bit field)
	sendByte(e, 0xFF)
	pulseBit(e, false)
	sendByte(e, 0x77)
	pulseBit(e, false)
	sendByte(e, 0x66) // address 0x1FFF + 1 wraps to 0
	pulseBit(e, false)
	stop(e)

	dump := e.Dump()
	assert.Equal(t, uint8(0x77), dump[addressMask])
	assert.Equal(t, uint8(0x66), dump[0])
}

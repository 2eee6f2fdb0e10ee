package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimer_UnderflowReloadsAndRaisesIRQ(t *testing.T) {
	tm := &Timer{}
	tm.ReloadValue = 0x0005
	tm.Counter = 0x0001
	tm.EnableLo = true
	tm.EnableScalarLo = true
	tm.PrescalarLo = 2

	fired := false
	tm.OnUnderflowLo = func() { fired = true }

	tm.Tick(4) // two decrements: 1 -> 0, then 0 underflows and reloads

	assert.True(t, fired)
	assert.Equal(t, uint8(0x05), uint8(tm.Counter))
}

func TestTimer_FullModePivotFiresOnceThenRearms(t *testing.T) {
	tm := &Timer{FullMode: true}
	tm.ReloadValue = 10
	tm.Counter = 10
	tm.EnableLo = true
	tm.EnableScalarLo = true
	tm.PrescalarLo = 1
	tm.Pivot = 5
	tm.PivotStatus = true

	pivotCount := 0
	tm.OnPivot = func() { pivotCount++ }

	for i := 0; i < 6; i++ {
		tm.Tick(1)
	}

	assert.Equal(t, 1, pivotCount)

	// 4 -> 0, underflow reloads 10 and re-arms, then 9..5 fires again.
	for i := 0; i < 10; i++ {
		tm.Tick(1)
	}

	assert.Equal(t, 2, pivotCount, "pivot re-armed by underflow")
}

func TestTimer_Fixed256RaisesCascadingRates(t *testing.T) {
	tm := NewFixed256()
	tm.EnableLo = true
	tm.Counter = 127

	var got []string
	tm.OnRate32Hz = func() { got = append(got, "32") }
	tm.OnRate8Hz = func() { got = append(got, "8") }
	tm.OnRate2Hz = func() { got = append(got, "2") }
	tm.OnRate1Hz = func() { got = append(got, "1") }

	tm.Tick(1) // counter -> 128: divisible by 128, 32, 8 but not by 256 -> no 1Hz

	assert.Equal(t, []string{"2", "8", "32"}, got)
}

func TestTimer_WriteCntResetsOnlyRequestedHalf(t *testing.T) {
	tm := &Timer{Counter: 0xABCD}

	tm.WriteCnt(0x02) // reset lo half only

	assert.Equal(t, uint16(0xAB00), tm.Counter)
}

func TestTimer_16BitTimerPartialResetIndependentBits(t *testing.T) {
	tm := &Timer{Counter: 0x1234}

	tm.WriteCnt(0x22) // reset both halves independently (bits 0x02 and 0x20)

	assert.Equal(t, uint16(0x0000), tm.Counter)
}

func TestTimer_OutputFrequencyDerivesFromPrescalarAndPreset(t *testing.T) {
	tm := &Timer{}
	tm.WriteOsc(0, 0x00) // 2 MHz, scalar 0 -> prescalar 2

	freq := tm.OutputFrequency(9) // preset+1 = 10

	assert.InDelta(t, 100000.0, freq, 0.001)
}

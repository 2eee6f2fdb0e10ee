package savestate

import (
	"testing"

	"github.com/pokemini/pmcore/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	var state State
	state.CPU.A = 0x12
	state.CPU.PC = 0xABCD
	state.RAM[10] = 0x42
	state.EEPROM[100] = 0x77
	state.PRCCounter = 5

	data, err := Marshal(&state)
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, state.CPU.A, restored.CPU.A)
	assert.Equal(t, state.CPU.PC, restored.CPU.PC)
	assert.Equal(t, state.RAM[10], restored.RAM[10])
	assert.Equal(t, state.EEPROM[100], restored.EEPROM[100])
	assert.Equal(t, state.PRCCounter, restored.PRCCounter)
}

func TestUnmarshal_RejectsBadMagic(t *testing.T) {
	_, err := Unmarshal([]byte("nope, not a save state"))
	assert.Error(t, err)
}

func TestUnmarshal_RejectsWrongVersion(t *testing.T) {
	data, err := Marshal(&State{})
	require.NoError(t, err)

	data[4] = 0xFF // corrupt the version field

	_, err = Unmarshal(data)
	assert.Error(t, err)
}

func TestCaptureRestoreTimer_RoundTrip(t *testing.T) {
	src := &timer.Timer{
		Counter:     0x1234,
		ReloadValue: 0x5678,
		PrescalarLo: 16,
		FullMode:    true,
		Pivot:       99,
	}

	captured := CaptureTimer(src)

	dst := &timer.Timer{}
	RestoreTimer(dst, captured)

	assert.Equal(t, src.Counter, dst.Counter)
	assert.Equal(t, src.ReloadValue, dst.ReloadValue)
	assert.Equal(t, src.PrescalarLo, dst.PrescalarLo)
	assert.Equal(t, src.FullMode, dst.FullMode)
	assert.Equal(t, src.Pivot, dst.Pivot)
}

// Package savestate implements versioned binary save states: a fixed
// magic/version header followed by a gzip-compressed body holding CPU
// registers, the four timers, RAM, EEPROM and the PRC/LCD counters,
// with no padding between fields so layouts stay exact across Go
// versions and platforms. No APU state is stored.
//
// The magic+version header and binary.Write-per-field layout are
// grounded on IntuitionAmiga-IntuitionEngine/debug_snapshot.go's
// SaveSnapshotToFile/LoadSnapshotFromFile (the only save/restore
// precedent anywhere in the retrieved pack; the teacher itself has no
// save-state feature). encoding/gob is deliberately not used here:
// spec §6 fixes an exact wire layout, and gob's self-describing
// encoding does not guarantee a stable byte-for-byte format across
// types the way a hand-ordered binary.Write sequence does.
package savestate

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pokemini/pmcore/internal/timer"
)

const (
	magic          = "PMSS"
	currentVersion = uint32(1)
)

// CPUState is the subset of CPU register state persisted verbatim.
type CPUState struct {
	A, B, H, L, BR, SC, CC, EP, XP, YP, NB, CB uint8
	SP, PC, IX, IY                             uint16
}

// TimerState mirrors one internal/timer.Timer's persisted fields.
type TimerState struct {
	Counter, ReloadValue               uint16
	PrescalarLo, PrescalarHi           uint32
	OscLo, OscHi                       uint8
	EnableLo, EnableHi                 uint8 // bool as uint8 for a fixed-width layout
	EnableScalarLo, EnableScalarHi     uint8
	FullMode                           uint8
	Pivot                              uint16
	PivotStatus                       uint8
}

// State is the complete, flat save-state payload.
type State struct {
	CPU        CPUState
	Timer1     TimerState
	Timer2     TimerState
	Timer3     TimerState
	Timer256   TimerState
	RAM        [0x1100]uint8 // addr.RAMEnd-addr.RAMStart+1, duplicated here to avoid an import cycle
	EEPROM     [8 * 1024]uint8
	PRCCounter uint8
	LCDPage    uint8
	LCDColumn  uint8
}

// Save writes state to w as: 4-byte magic, 4-byte little-endian
// version, then the gzip-compressed binary.Write encoding of state's
// fields in struct declaration order.
func Save(w io.Writer, state *State) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("savestate: write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, currentVersion); err != nil {
		return fmt.Errorf("savestate: write version: %w", err)
	}

	gz := gzip.NewWriter(w)
	if err := binary.Write(gz, binary.LittleEndian, state); err != nil {
		return fmt.Errorf("savestate: encode body: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("savestate: finalize compression: %w", err)
	}
	return nil
}

// Load reads a save state previously written by Save.
func Load(r io.Reader) (*State, error) {
	header := make([]byte, len(magic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("savestate: read magic: %w", err)
	}
	if string(header) != magic {
		return nil, fmt.Errorf("savestate: bad magic %q, want %q", header, magic)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("savestate: read version: %w", err)
	}
	if version != currentVersion {
		return nil, fmt.Errorf("savestate: unsupported version %d, want %d", version, currentVersion)
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("savestate: open compressed body: %w", err)
	}
	defer gz.Close()

	var state State
	if err := binary.Read(gz, binary.LittleEndian, &state); err != nil {
		return nil, fmt.Errorf("savestate: decode body: %w", err)
	}
	return &state, nil
}

// Marshal is a convenience wrapper returning the encoded bytes
// directly, for callers that want to hand a []byte to a cartridge's
// companion save file rather than stream to an io.Writer.
func Marshal(state *State) ([]byte, error) {
	var buf bytes.Buffer
	if err := Save(&buf, state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is the inverse of Marshal.
func Unmarshal(data []byte) (*State, error) {
	return Load(bytes.NewReader(data))
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func u8ToBool(v uint8) bool { return v != 0 }

// CaptureTimer flattens a live timer.Timer into its persisted form.
func CaptureTimer(t *timer.Timer) TimerState {
	return TimerState{
		Counter:        t.Counter,
		ReloadValue:    t.ReloadValue,
		PrescalarLo:    t.PrescalarLo,
		PrescalarHi:    t.PrescalarHi,
		OscLo:          uint8(t.OscLo),
		OscHi:          uint8(t.OscHi),
		EnableLo:       boolToU8(t.EnableLo),
		EnableHi:       boolToU8(t.EnableHi),
		EnableScalarLo: boolToU8(t.EnableScalarLo),
		EnableScalarHi: boolToU8(t.EnableScalarHi),
		FullMode:       boolToU8(t.FullMode),
		Pivot:          t.Pivot,
		PivotStatus:    boolToU8(t.PivotStatus),
	}
}

// RestoreTimer writes a persisted TimerState back into a live Timer,
// preserving its IRQ callback wiring (set up once at construction,
// never part of the persisted state).
func RestoreTimer(dst *timer.Timer, s TimerState) {
	dst.Counter = s.Counter
	dst.ReloadValue = s.ReloadValue
	dst.PrescalarLo = s.PrescalarLo
	dst.PrescalarHi = s.PrescalarHi
	dst.OscLo = timer.Oscillator(s.OscLo)
	dst.OscHi = timer.Oscillator(s.OscHi)
	dst.EnableLo = u8ToBool(s.EnableLo)
	dst.EnableHi = u8ToBool(s.EnableHi)
	dst.EnableScalarLo = u8ToBool(s.EnableScalarLo)
	dst.EnableScalarHi = u8ToBool(s.EnableScalarHi)
	dst.FullMode = u8ToBool(s.FullMode)
	dst.Pivot = s.Pivot
	dst.PivotStatus = u8ToBool(s.PivotStatus)
}

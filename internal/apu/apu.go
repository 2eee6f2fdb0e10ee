// Package apu implements the Pokémon Mini's single-channel PWM audio
// output, per spec §4.6.
//
// Field/accumulator layout (a frequency/duty pair driving a sample
// accumulator, sampled into a fixed-size ring buffer for a host audio
// callback to drain) follows the shape of jeebie/audio/apu.go's
// pcmBuffer/pcmCursor/pcmCycleAcc sampling pipeline, collapsed from
// four mixed channels down to the Pokémon Mini's single PWM output
// driven directly by Timer 3 rather than its own frequency registers.
package apu

const (
	// bufferSize is the ring buffer capacity in samples; on overflow
	// the buffer resets to empty rather than silently dropping the
	// oldest sample, per spec §4.6's overflow-reset invariant.
	bufferSize = 512
)

// volumeTable maps the 2-bit PM_AUDIO_VOLUME field to a signed 16-bit
// sample level, per spec §4.6: {silence, silence, silence, high}
// (levels 0, 1 and 2 are all silent; only level 3 produces output).
var volumeTable = [4]int16{0, 0, 0, 32767}

// APU is the PWM audio channel.
type APU struct {
	enabled bool
	volume  uint8 // 2-bit PM_AUDIO_VOLUME field

	dutyHigh bool // current half-cycle of the PWM square wave
	freqHz   float64
	cycleAcc float64

	hostSampleRate     int
	cyclesPerSample    float64
	sampleCycleAcc     float64

	ring     [bufferSize]int16
	writePos int
	readPos  int
	count    int
}

// New constructs an APU sampling at hostSampleRate (e.g. 44100).
func New(hostSampleRate int) *APU {
	a := &APU{hostSampleRate: hostSampleRate}
	a.recomputeCyclesPerSample()
	return a
}

func (a *APU) recomputeCyclesPerSample() {
	const cpuHz = 4_000_000.0 / 4 // instruction-cycle clock, see internal/cpu
	if a.hostSampleRate <= 0 {
		a.hostSampleRate = 44100
	}
	a.cyclesPerSample = cpuHz / float64(a.hostSampleRate)
}

// WriteVolume applies a PM_AUDIO_VOLUME write.
func (a *APU) WriteVolume(v uint8) { a.volume = v & 0x03 }

// SetEnabled gates PWM output, driven by the bus's PM_IO_DIR/DATA pin
// pmcore reserves for audio enable, per spec §4.6.
func (a *APU) SetEnabled(enabled bool) { a.enabled = enabled }

// SetFrequency sets the PWM output frequency, derived by the caller
// from Timer 3's OutputFrequency, per spec §4.6.
func (a *APU) SetFrequency(hz float64) { a.freqHz = hz }

// Tick advances the PWM generator and sampler by cycles CPU cycles.
func (a *APU) Tick(cycles uint32) {
	if a.enabled && a.freqHz > 0 {
		halfPeriod := (1.0 / a.freqHz / 2.0) * (4_000_000.0 / 4)
		a.cycleAcc += float64(cycles)
		for a.cycleAcc >= halfPeriod && halfPeriod > 0 {
			a.cycleAcc -= halfPeriod
			a.dutyHigh = !a.dutyHigh
		}
	}

	a.sampleCycleAcc += float64(cycles)
	for a.sampleCycleAcc >= a.cyclesPerSample {
		a.sampleCycleAcc -= a.cyclesPerSample
		a.pushSample()
	}
}

func (a *APU) currentSample() int16 {
	if !a.enabled || !a.dutyHigh {
		return 0
	}
	return volumeTable[a.volume]
}

func (a *APU) pushSample() {
	if a.count >= bufferSize {
		// Overflow: the consumer isn't draining fast enough. Reset
		// rather than silently drop the oldest sample, per spec §4.6.
		a.writePos, a.readPos, a.count = 0, 0, 0
	}
	a.ring[a.writePos] = a.currentSample()
	a.writePos = (a.writePos + 1) % bufferSize
	a.count++
}

// ReadSamples drains up to len(out) queued samples into out, returning
// how many were copied. Safe for a single consumer goroutine distinct
// from the producer driving Tick (SPSC), matching the host-callback
// pattern in jeebie/audio/provider.go.
func (a *APU) ReadSamples(out []int16) int {
	n := 0
	for n < len(out) && a.count > 0 {
		out[n] = a.ring[a.readPos]
		a.readPos = (a.readPos + 1) % bufferSize
		a.count--
		n++
	}
	return n
}

// QueuedSamples reports how many samples are currently buffered.
func (a *APU) QueuedSamples() int { return a.count }

package synth

import (
	"math"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/effects"
)

// NoiseSpec describes one noise-channel event to render.
type NoiseSpec struct {
	ClockShift int
	Divisor    int
	Width7     bool
	Env        *dsl.Envelope
	DurSec     float64
	Mods       []effects.Modulation
	SampleRate float64
}

// Noise renders the DMG's LFSR noise generator into a PCM buffer at its
// native clock, then resamples it to the device rate with a fixed-point
// position advance — the same pos/dr trick as the teacher's
// mixChannelsMono_Scalar, generalized from "play back a recorded
// sample" to "play back a synthesized bitstream" (spec.md §4.F).
type Noise struct {
	gain       *Param
	pcm        []int8
	pos        uint // 16.16 fixed point index into pcm
	dr         uint // fixed point advance per output sample
	tSec       float64
	durSec     float64
	sampleRate float64
	released   bool
}

// NewNoise constructs a Noise voice ready to Render from t=0.
func NewNoise(spec NoiseSpec) *Noise {
	divisor := spec.Divisor
	if divisor < 1 {
		divisor = 1
	}
	lfsrHz := float64(GBClockHz) / (float64(divisor) * math.Pow(2, float64(spec.ClockShift+1)))
	if lfsrHz <= 0 {
		lfsrHz = 1
	}

	bufDurSec := spec.DurSec + 0.05
	if bufDurSec > 1 {
		bufDurSec = 1
	}
	count := int(lfsrHz*bufDurSec) + 1
	pcm := generateLFSR(count, spec.Width7)

	sr := spec.SampleRate
	if sr <= 0 {
		sr = SampleRate
	}
	dr := uint((lfsrHz / sr) * 65536)
	if dr == 0 {
		dr = 1
	}

	n := &Noise{
		gain:       NewParam(0),
		pcm:        pcm,
		dr:         dr,
		durSec:     spec.DurSec,
		sampleRate: sr,
	}
	applyEnvelope(n.gain, spec.Env, spec.DurSec)
	applyGainMods(n.gain, spec.Mods)
	return n
}

// generateLFSR runs the DMG's Galois LFSR recurrence: bit = xor of the
// two lowest bits, shifted into bit 14 (15-bit mode) and additionally
// folded into bit 6 in 7-bit width mode. Output is the inverted LSB as
// ±1 (spec.md §4.F), matching the bit-0-on-read convention other GB APU
// emulators in the corpus use.
func generateLFSR(count int, width7 bool) []int8 {
	out := make([]int8, count)
	lfsr := uint16(0x7FFF)
	for i := range out {
		bit := (lfsr ^ (lfsr >> 1)) & 1
		lfsr >>= 1
		lfsr |= bit << 14
		if width7 {
			lfsr &^= 1 << 6
			lfsr |= bit << 6
		}
		if lfsr&1 == 0 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

// FreqParam has no meaning for a noise channel's fixed clock; it is
// exposed only to satisfy Voice for effects that might still probe it.
func (n *Noise) FreqParam() *Param { return NewParam(0) }
func (n *Noise) GainParam() *Param { return n.gain }

func (n *Noise) Render(out []float32) int {
	dt := 1 / n.sampleRate
	written := 0
	for written < len(out) {
		if n.tSec >= n.durSec {
			break
		}
		idx := int(n.pos >> 16)
		if idx >= len(n.pcm) {
			break
		}
		g := n.gain.Tick(n.tSec)
		out[written] = clamp32(float64(n.pcm[idx]) * g)
		n.pos += n.dr
		n.tSec += dt
		written++
	}
	return written
}

func (n *Noise) Release() {
	if n.released {
		return
	}
	n.released = true
	n.gain.LinearRampToValueAtTime(0, n.tSec+0.02, 0.02)
}

package synth

import "github.com/kadraman/beatbax/effects"

// WaveSpec describes one wave-channel event to render.
type WaveSpec struct {
	Table      [16]uint8 // 4-bit samples, 0..15
	BaseFreq   float64
	Volume     int // percent, 0/25/50/100
	DurSec     float64
	Mods       []effects.Modulation
	SampleRate float64
}

// cycleLen is the wavetable length and cycleHz its native playback rate
// when freq equals cycleHz (spec.md §4.F: "1-cycle buffer sampled at
// 8192 Hz").
const (
	cycleLen = 16
	cycleHz  = 8192.0 / cycleLen
)

// Wave plays a 16-sample wavetable looped at a rate proportional to its
// target frequency, the same "advance a fixed-point position through a
// sample buffer" shape as the teacher's PCM mixer, generalized from a
// fixed sample to a 16-entry table.
type Wave struct {
	freq       *Param
	gain       *Param
	table      [16]float64
	phase      float64
	tSec       float64
	durSec     float64
	sampleRate float64
	released   bool
}

// NewWave constructs a Wave voice ready to Render from t=0.
func NewWave(spec WaveSpec) *Wave {
	sr := spec.SampleRate
	if sr <= 0 {
		sr = SampleRate
	}
	w := &Wave{
		freq:       NewParam(spec.BaseFreq),
		gain:       NewParam(float64(spec.Volume) / 100),
		durSec:     spec.DurSec,
		sampleRate: sr,
	}
	for i, v := range spec.Table {
		w.table[i] = (float64(v)-7.5)/7.5
	}
	applyFreqMods(w.freq, spec.BaseFreq, spec.Mods)
	applyGainMods(w.gain, spec.Mods)
	return w
}

func (w *Wave) FreqParam() *Param { return w.freq }
func (w *Wave) GainParam() *Param { return w.gain }

func (w *Wave) Render(out []float32) int {
	dt := 1 / w.sampleRate
	n := 0
	for n < len(out) {
		if w.tSec >= w.durSec {
			break
		}
		f := w.freq.Tick(w.tSec)
		g := w.gain.Tick(w.tSec)

		i0 := int(w.phase) % cycleLen
		i1 := (i0 + 1) % cycleLen
		frac := w.phase - float64(int(w.phase))
		sample := w.table[i0]*(1-frac) + w.table[i1]*frac

		out[n] = clamp32(sample * g)

		w.phase += f * cycleLen * dt
		if w.phase >= cycleLen {
			w.phase -= float64(cycleLen) * float64(int(w.phase/float64(cycleLen)))
		}
		w.tSec += dt
		n++
	}
	return n
}

func (w *Wave) Release() {
	if w.released {
		return
	}
	w.released = true
	w.gain.LinearRampToValueAtTime(0, w.tSec+0.02, 0.02)
}

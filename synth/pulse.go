package synth

import (
	"math"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/effects"
)

// PulseSpec describes one pulse-channel event to render.
type PulseSpec struct {
	BaseFreq   float64
	Duty       float64 // percentage, e.g. 12.5/25/50/75 (dsl.Instrument.Duty's unit)
	Env        *dsl.Envelope
	DurSec     float64
	Mods       []effects.Modulation
	Harmonics  int // Fourier series terms, K>=200 per spec.md §4.F
	SampleRate float64
}

// Pulse is a band-limited pulse oscillator built additively from the
// Fourier series of duty d: a_k = (2/kπ)·sin(kπd) for k=1..K. This
// mirrors the teacher's per-sample state advance (mixChannelsMono_Scalar's
// pos += dr) but accumulates a phase angle instead of indexing a PCM
// table.
type Pulse struct {
	freq       *Param
	gain       *Param
	phase      float64
	duty       float64
	harmonics  int
	sampleRate float64
	tSec       float64
	durSec     float64
	released   bool
	coeffs     []float64
}

// NewPulse constructs a Pulse voice ready to Render from t=0.
func NewPulse(spec PulseSpec) *Pulse {
	k := spec.Harmonics
	if k <= 0 {
		k = 200
	}
	sr := spec.SampleRate
	if sr <= 0 {
		sr = SampleRate
	}
	duty := spec.Duty / 100
	p := &Pulse{
		freq:       NewParam(spec.BaseFreq),
		gain:       NewParam(0),
		duty:       duty,
		harmonics:  k,
		sampleRate: sr,
		durSec:     spec.DurSec,
		coeffs:     make([]float64, k+1),
	}
	for i := 1; i <= k; i++ {
		p.coeffs[i] = (2 / (float64(i) * math.Pi)) * math.Sin(float64(i)*math.Pi*duty)
	}
	applyEnvelope(p.gain, spec.Env, spec.DurSec)
	applyFreqMods(p.freq, spec.BaseFreq, spec.Mods)
	applyGainMods(p.gain, spec.Mods)
	return p
}

// applyEnvelope schedules the GB-style envelope cadence onto gain: hold
// at initial/15, ramp toward 0 or 1 at one step per 1/64s·period, 7
// steps to silence/full (spec.md §4.F).
func applyEnvelope(gain *Param, env *dsl.Envelope, durSec float64) {
	initial := 1.0
	direction := "none"
	period := 0
	if env != nil {
		initial = float64(env.Initial) / 15
		direction = env.Direction
		period = env.Period
	}
	gain.SetValueAtTime(initial, 0)
	if direction == "none" || period == 0 {
		return
	}
	stepSec := (1.0 / 64) * float64(period)
	cadence := stepSec * 7
	switch direction {
	case "down":
		gain.LinearRampToValueAtTime(0, cadence, cadence)
	case "up":
		gain.LinearRampToValueAtTime(1, cadence, cadence)
	}
	releaseAt := durSec - 0.02
	if releaseAt > 0 {
		gain.SetValueAtTime(gain.Value(), releaseAt)
	}
}

func (p *Pulse) FreqParam() *Param { return p.freq }
func (p *Pulse) GainParam() *Param { return p.gain }

func (p *Pulse) Render(out []float32) int {
	dt := 1 / p.sampleRate
	n := 0
	for n < len(out) {
		if p.tSec >= p.durSec {
			break
		}
		f := p.freq.Tick(p.tSec)
		g := p.gain.Tick(p.tSec)
		sample := 0.0
		theta := p.phase * 2 * math.Pi
		for k := 1; k <= p.harmonics; k++ {
			sample += p.coeffs[k] * math.Sin(float64(k)*theta)
		}
		out[n] = clamp32(sample * g)
		p.phase += f * dt
		if p.phase >= 1 {
			p.phase -= math.Floor(p.phase)
		}
		p.tSec += dt
		n++
	}
	return n
}

func (p *Pulse) Release() {
	if p.released {
		return
	}
	p.released = true
	p.gain.LinearRampToValueAtTime(0, p.tSec+0.02, 0.02)
}

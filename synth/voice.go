// Package synth renders BeatBax's Game Boy-style channels — pulse, wave
// and noise — into PCM sample buffers. It is the idiomatic-Go stand-in
// for a browser AudioContext node graph: each Voice owns a FreqParam
// and GainParam instead of real AudioParams, advanced one sample at a
// time by Render.
package synth

import (
	"math"

	"github.com/kadraman/beatbax/effects"
)

// SampleRate is the device output rate every Voice renders at.
const SampleRate = 48000

// GBClockHz is the DMG system clock, used to derive noise and sweep
// timing (spec.md §4.F).
const GBClockHz = 4194304

// Voice is one scheduled sound instance covering a single event. It is
// built lazily at schedule time and destroys itself at start+dur+ε
// (spec.md §4.F); the playback orchestrator owns that lifetime and
// calls Release shortly before the voice's natural end.
type Voice interface {
	FreqParam() *Param
	GainParam() *Param
	// Render advances the voice by len(out) samples, each in [-1, 1],
	// and returns the number of samples actually written (fewer than
	// len(out) once the voice has nothing left to render).
	Render(out []float32) int
	// Release begins the voice's release ramp; safe to call more than
	// once.
	Release()
}

// applyFreqMods schedules every modulation that targets frequency onto
// freq, anchored to the voice's own clock (0 = voice start). baseFreq is
// the voice's unmodulated pitch, matching the teacher's "_baseFreq"
// convention effects read off the oscillator (spec.md §4.F).
func applyFreqMods(freq *Param, baseFreq float64, mods []effects.Modulation) {
	for _, m := range mods {
		switch mod := m.(type) {
		case effects.VibratoMod:
			scheduleVibrato(freq, baseFreq, mod.DepthHz, mod.RateHz, mod.StartSec, mod.DurSec)
		case effects.PortamentoMod:
			freq.SetValueAtTime(mod.FromFreq, mod.StartSec)
			freq.LinearRampToValueAtTime(mod.ToFreq, mod.StartSec+mod.DurSec, mod.DurSec)
		case effects.ArpeggioMod:
			scheduleArpeggio(freq, baseFreq, mod)
		case effects.BendMod:
			target := baseFreq * math.Pow(2, mod.Semitones/12)
			freq.LinearRampToValueAtTime(target, mod.DelaySec+mod.TimeSec, mod.TimeSec)
		case effects.SweepMod:
			freq.LinearRampToValueAtTime(mod.FinalFreq, mod.StartSec+mod.DurSec, mod.DurSec)
		}
	}
}

// applyGainMods schedules every modulation that targets gain onto gain.
func applyGainMods(gain *Param, mods []effects.Modulation) {
	for _, m := range mods {
		switch mod := m.(type) {
		case effects.VolSlideMod:
			if mod.Steps > 0 {
				scheduleStepped(gain, mod.From, mod.To, mod.Steps, mod.StartSec, mod.DurSec)
			} else {
				gain.LinearRampToValueAtTime(mod.To, mod.StartSec+mod.DurSec, mod.DurSec)
			}
		case effects.TremoloMod:
			scheduleTremolo(gain, mod.Depth, mod.RateHz, mod.StartSec, mod.DurSec)
		case effects.CutMod:
			gain.LinearRampToValueAtTime(0, mod.AtSec+mod.FadeSec, mod.FadeSec)
		}
	}
}

// scheduleVibrato approximates a sine LFO with a short back-and-forth
// ramp stairway — plain ramps are all Param supports, matching the
// teacher's avoidance of anything beyond simple linear segments in its
// own mix path.
func scheduleVibrato(freq *Param, baseFreq, depthHz, rateHz, startSec, durSec float64) {
	if rateHz <= 0 || durSec <= 0 {
		return
	}
	period := 1 / rateHz
	quarter := period / 4
	t := startSec
	up := true
	for t < startSec+durSec {
		target := baseFreq
		if up {
			target = baseFreq + depthHz
		} else {
			target = baseFreq - depthHz
		}
		freq.LinearRampToValueAtTime(target, t+quarter, quarter)
		t += quarter
		up = !up
	}
	freq.LinearRampToValueAtTime(baseFreq, startSec+durSec, quarter)
}

func scheduleTremolo(gain *Param, depth, rateHz, startSec, durSec float64) {
	if rateHz <= 0 || durSec <= 0 {
		return
	}
	base := gain.Value()
	period := 1 / rateHz
	quarter := period / 4
	t := startSec
	up := false
	for t < startSec+durSec {
		target := base
		if up {
			target = base + depth
		} else {
			target = base - depth
		}
		if target < 0 {
			target = 0
		}
		gain.LinearRampToValueAtTime(target, t+quarter, quarter)
		t += quarter
		up = !up
	}
	gain.LinearRampToValueAtTime(base, startSec+durSec, quarter)
}

func scheduleStepped(gain *Param, from, to float64, steps int, startSec, durSec float64) {
	stepDur := durSec / float64(steps)
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		v := from + (to-from)*frac
		gain.SetValueAtTime(v, startSec+stepDur*float64(i))
	}
}

// scheduleArpeggio cycles base, base+offset1, base+offset2, ... at the
// chip's native frame rate, e.g. 60Hz (spec.md §4.D arp handler).
func scheduleArpeggio(freq *Param, baseFreq float64, mod effects.ArpeggioMod) {
	if mod.FrameHz <= 0 || mod.DurSec <= 0 {
		return
	}
	frame := 1 / mod.FrameHz
	steps := append([]int{0}, mod.Offsets...)
	i := 0
	for t := mod.StartSec; t < mod.StartSec+mod.DurSec; t += frame {
		semis := steps[i%len(steps)]
		freq.SetValueAtTime(baseFreq*math.Pow(2, float64(semis)/12), t)
		i++
	}
}

func clamp32(v float64) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return float32(v)
}

package effects

import (
	"math"
	"strconv"
	"strings"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/internal/diag"
)

func registerBuiltins(r *Registry) {
	r.Register("pan", panHandler)
	r.Register("vib", vibHandler)
	r.Register("port", r.portHandler())
	r.Register("arp", arpHandler)
	r.Register("volslide", volSlideHandler)
	r.Register("trem", tremHandler)
	r.Register("cut", cutHandler)
	r.Register("retrig", retrigHandler)
	r.Register("bend", bendHandler)
	r.Register("sweep", sweepHandler)
	r.Register("echo", echoHandler)
}

func floatParam(params []string, i int, def float64) float64 {
	if i >= len(params) {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(params[i]), 64)
	if err != nil {
		return def
	}
	return f
}

func intParam(params []string, i int, def int) int {
	if i >= len(params) {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(params[i]))
	if err != nil {
		return def
	}
	return n
}

func strParam(params []string, i int, def string) string {
	if i >= len(params) || strings.TrimSpace(params[i]) == "" {
		return def
	}
	return strings.TrimSpace(params[i])
}

// panHandler routes the gain node through a stereo panner: constant
// pan(v), or a linear ramp pan(a,b) over dur.
func panHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil || !nodes.Cap.StereoPanner || len(params) == 0 {
		return nil
	}
	from := floatParam(params, 0, 0)
	to := from
	if len(params) > 1 {
		to = floatParam(params, 1, from)
	}
	nodes.append(PanMod{From: from, To: to, StartSec: startSec, DurSec: durSec})
	return nil
}

// vibHandler modulates oscillator frequency with an LFO. Depth is
// tracker-scaled per spec.md §4.D so an instrument's existing vibrato
// depth parameterization (0-15 range) maps onto a musically sane Hz swing.
func vibHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil || !nodes.Cap.Oscillator {
		return nil
	}
	depth := floatParam(params, 0, 0)
	rate := floatParam(params, 1, 4)
	waveform := strParam(params, 2, "sine")
	dur := durSec
	if len(params) > 3 {
		dur = floatParam(params, 3, durSec)
	}
	trackerDepth := clampFloat(math.Round(clampFloat(depth*4, 0, 15)), 0, 15)
	amplitudeHz := nodes.BaseFreq * trackerDepth * 0.012
	nodes.append(VibratoMod{DepthHz: amplitudeHz, RateHz: rate, Waveform: waveform, StartSec: startSec, DurSec: dur})
	return nil
}

// portHandler returns a closure bound to the registry so it can read
// and update the per-channel last-frequency map.
func (r *Registry) portHandler() Handler {
	return func(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
		if nodes == nil || !nodes.Cap.Oscillator && !nodes.Cap.BufferSource {
			return nil
		}
		speed := floatParam(params, 0, 255)
		if speed < 1 {
			speed = 1
		}
		if speed > 255 {
			speed = 255
		}
		target := nodes.BaseFreq
		prev, ok := r.lastFreq(channelID)
		r.setLastFreq(channelID, target)
		if !ok || math.Abs(target-prev) <= 1 {
			return nil
		}
		portDuration := (256 - speed) / 256 * durSec * 0.6
		nodes.append(PortamentoMod{FromFreq: prev, ToFreq: target, StartSec: startSec, DurSec: portDuration})
		return nil
	}
}

// arpHandler cycles [0, offsets...] at the chip's native frame rate.
// Negative offsets are warned and dropped.
func arpHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil || !nodes.Cap.Oscillator {
		return nil
	}
	var offsets []int
	for _, p := range params {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		if n < 0 {
			if ctx != nil {
				ctx.warn(diag.WarnArpeggioRange, "negative arpeggio offset "+p+" dropped")
			}
			continue
		}
		offsets = append(offsets, n)
	}
	frameHz := 60.0
	if ctx != nil && ctx.FrameHz > 0 {
		frameHz = ctx.FrameHz
	}
	nodes.append(ArpeggioMod{Offsets: offsets, FrameHz: frameHz, StartSec: startSec, DurSec: durSec})
	return nil
}

// volSlideHandler ramps gain from the envelope-initial baseline to
// baseline+delta/5, linearly or stepped. Documented limitation (spec.md
// §9 open question i): this cancels any existing gain automation rather
// than stacking with it.
func volSlideHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil || !nodes.Cap.Gain {
		return nil
	}
	delta := floatParam(params, 0, 0)
	steps := intParam(params, 1, 0)

	baseline := 1.0
	if inst != nil && inst.Env != nil {
		baseline = float64(inst.Env.Initial) / 15
	}
	nodes.append(VolSlideMod{From: baseline, To: baseline + delta/5, Steps: steps, StartSec: startSec, DurSec: durSec})
	return nil
}

// tremHandler modulates gain with an LFO (tremolo).
func tremHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil || !nodes.Cap.Gain {
		return nil
	}
	depth := floatParam(params, 0, 0)
	rate := floatParam(params, 1, 6)
	waveform := strParam(params, 2, "sine")
	dur := durSec
	if len(params) > 3 {
		dur = floatParam(params, 3, durSec)
	}
	nodes.append(TremoloMod{Depth: clampFloat(depth, 0, 15) / 15 * 0.5, RateHz: rate, Waveform: waveform, StartSec: startSec, DurSec: dur})
	return nil
}

// cutHandler ramps gain to zero 5ms after start+ticks*tickSec.
func cutHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil || !nodes.Cap.Gain || len(params) == 0 {
		return nil
	}
	ticks := floatParam(params, 0, 0)
	ts := tickSec
	if len(params) > 1 {
		ts = floatParam(params, 1, tickSec)
	}
	nodes.append(CutMod{AtSec: startSec + ticks*ts, FadeSec: 0.005})
	return nil
}

// retrigHandler attaches metadata so the orchestrator (package playback)
// can schedule extra voices at the given tick interval.
func retrigHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil || len(params) == 0 {
		return nil
	}
	interval := intParam(params, 0, 1)
	volDelta := floatParam(params, 1, 0)
	ts := tickSec
	if len(params) > 2 {
		ts = floatParam(params, 2, tickSec)
	}
	nodes.append(RetriggerMod{IntervalTicks: interval, VolumeDelta: volDelta, TickSec: ts})
	return nil
}

// bendHandler holds base pitch for delay, then ramps to base*2^(semitones/12)
// over time using the named curve.
func bendHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil || !nodes.Cap.Oscillator && !nodes.Cap.BufferSource {
		return nil
	}
	if len(params) == 0 {
		return nil
	}
	semitones := floatParam(params, 0, 0)
	curve := strParam(params, 1, "linear")
	delay := durSec * 0.5
	if len(params) > 2 {
		delay = floatParam(params, 2, delay)
	}
	duration := durSec - delay
	if len(params) > 3 {
		duration = floatParam(params, 3, duration)
	}
	if duration < 0 {
		duration = 0
	}
	nodes.append(BendMod{Semitones: semitones, Curve: curve, DelaySec: delay, TimeSec: duration})
	return nil
}

// sweepHandler models the NR10-accurate iterative sweep formula: warn
// off pulse1, no-op at time=0 or shift=0.
func sweepHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil || !nodes.Cap.Oscillator || len(params) < 3 {
		return nil
	}
	time := intParam(params, 0, 0)
	direction := strParam(params, 1, "down")
	shift := intParam(params, 2, 0)
	if time == 0 || shift == 0 {
		return nil
	}
	if inst != nil && inst.Type != "pulse1" && ctx != nil {
		ctx.warn(diag.WarnSweepNotPulse1, "sweep applied to a non-pulse1 instrument")
	}

	f := nodes.BaseFreq
	for i := 0; i < time && f > 0; i++ {
		delta := f / math.Pow(2, float64(shift))
		if direction == "down" {
			f -= delta
		} else {
			f += delta
		}
		if f < 0 {
			f = 0
		}
	}
	nodes.append(SweepMod{Time: time, Shift: shift, Direction: direction, FinalFreq: f, StartSec: startSec, DurSec: durSec})
	return nil
}

// echoHandler attaches delay/feedback/mix metadata. delay < 10 is
// interpreted as a beat fraction (multiplied by tickSec*16).
func echoHandler(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error {
	if nodes == nil {
		return nil
	}
	delay := floatParam(params, 0, 0)
	feedback := clampFloat(floatParam(params, 1, 0.5), 0, 1)
	mix := clampFloat(floatParam(params, 2, 0.3), 0, 1)
	ts := tickSec
	if len(params) > 3 {
		ts = floatParam(params, 3, tickSec)
	}
	delaySec := delay
	if delay < 10 {
		delaySec = delay * ts * 16
	}
	nodes.append(EchoMod{DelaySec: delaySec, Feedback: feedback, Mix: mix})
	return nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

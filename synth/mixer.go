package synth

import (
	"math"

	"github.com/kadraman/beatbax/effects"
	"github.com/kadraman/beatbax/internal/comb"
)

// Mixer accumulates any number of concurrently-sounding voices into one
// stereo int32 buffer, clamping to int16 range only when the caller
// drains it — matching the teacher's comment that clamping happens when
// the final audio is returned, not while mixing.
type Mixer struct {
	buffer []int32
	frames int
}

// NewMixer returns a Mixer sized for frames stereo sample-pairs.
func NewMixer(frames int) *Mixer {
	return &Mixer{buffer: make([]int32, frames*2), frames: frames}
}

// Reset zeroes the accumulation buffer for reuse across render blocks.
func (m *Mixer) Reset() {
	for i := range m.buffer {
		m.buffer[i] = 0
	}
}

// AddVoice mixes a block of rendered mono samples at pan (-1 = left, 0 =
// center, +1 = right) using an equal-power pan law.
func (m *Mixer) AddVoice(mono []float32, pan float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) * math.Pi / 4
	lvol := int(math.Cos(angle) * 255)
	rvol := int(math.Sin(angle) * 255)
	mixStereo(mono, lvol, rvol, m.buffer)
}

// Drain converts the accumulated buffer to clamped int16 stereo PCM.
func (m *Mixer) Drain() []int16 {
	out := make([]int16, len(m.buffer))
	for i, v := range m.buffer {
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// EchoFilter streams one voice's echo effect across successive
// RenderBlock calls, adapting the teacher's CombAdd (a comb filter fed
// incrementally rather than in one construction-time pass) since a
// single render block is almost always shorter than the delay itself.
type EchoFilter struct {
	filter *comb.CombAdd
	mix    float64
}

// NewEchoFilter returns an EchoFilter for mod, or nil if its delay is
// non-positive (an echo with no delay is a no-op).
func NewEchoFilter(mod effects.EchoMod, sampleRate int) *EchoFilter {
	delayMs := int(mod.DelaySec * 1000)
	if delayMs <= 0 {
		return nil
	}
	return &EchoFilter{
		filter: comb.NewCombAdd(sampleRate, float32(mod.Feedback), delayMs, sampleRate),
		mix:    mod.Mix,
	}
}

// Process blends mono against its comb-filtered wet signal, feeding mono
// into the filter as duplicated stereo (the teacher's CombAdd input
// shape) and unwrapping the left channel back out.
func (e *EchoFilter) Process(mono []float32) []float32 {
	n := len(mono)
	stereo := make([]int16, n*2)
	for i, s := range mono {
		v := toInt16(s)
		stereo[i*2] = v
		stereo[i*2+1] = v
	}
	e.filter.InputSamples(stereo)
	wet := make([]int16, n*2)
	e.filter.GetAudio(wet)

	out := make([]float32, n)
	for i := range mono {
		w := float64(wet[i*2]) / math.MaxInt16
		out[i] = float32(float64(mono[i])*(1-e.mix) + w*e.mix)
	}
	return out
}

func toInt16(s float32) int16 {
	v := float64(s) * math.MaxInt16
	if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	if v < math.MinInt16 {
		v = math.MinInt16
	}
	return int16(v)
}

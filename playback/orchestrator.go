// Package playback implements the BeatBax orchestrator: it walks a
// resolved ISM, schedules voice construction and effect application
// through the scheduler and effect registry, and pulls rendered audio
// for a host to drain.
package playback

import (
	"strconv"
	"sync"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/effects"
	"github.com/kadraman/beatbax/internal/blog"
	"github.com/kadraman/beatbax/internal/diag"
	"github.com/kadraman/beatbax/notes"
	"github.com/kadraman/beatbax/resolve"
	"github.com/kadraman/beatbax/scheduler"
	"github.com/kadraman/beatbax/synth"
)

// Observers is the set of callbacks the orchestrator fires as playback
// progresses (spec.md §4.G).
type Observers struct {
	OnSchedule       func(channelID int, inst, token string, startSec, durSec float64)
	OnPositionChange func(channelID, eventIndex, totalEvents int)
	OnComplete       func()
	OnRepeat         func()
}

// activeVoice is one entry in the orchestrator's active voice table,
// keyed implicitly by ChannelID (REDESIGN FLAG §9: a flat slice rather
// than a map[int], mirroring the teacher's indexed `channels []channel`).
type activeVoice struct {
	channelID int
	voice     synth.Voice
	pan       float64
	stopped   bool
	echo      *synth.EchoFilter
}

// Orchestrator is the playback driver. It owns no audio device itself —
// a host (the CLI's portaudio callback, or an offline renderer) pulls
// mixed audio via RenderBlock, the same pull-model shape as the
// teacher's Player.GenerateAudio.
type Orchestrator struct {
	mu sync.Mutex

	sched      *scheduler.Scheduler
	effects    *effects.Registry
	cap        effects.Capability
	now        scheduler.Clock
	obs        Observers
	sampleRate int
	frameHz    float64
	log        blog.Logger

	active  []activeVoice
	muted   map[int]bool
	stopped map[int]bool
	solo    int // -1 = no solo
	paused  bool

	ism     *resolve.ISM
	repeat  bool
	lenSec  float64
}

// New returns an Orchestrator driven by sched and reg, rendering at
// sampleRate with the chip's native frame rate frameHz (for arpeggio
// and retrigger scheduling).
func New(sched *scheduler.Scheduler, reg *effects.Registry, cap effects.Capability, now scheduler.Clock, sampleRate int, frameHz float64) *Orchestrator {
	return &Orchestrator{
		sched:      sched,
		effects:    reg,
		cap:        cap,
		now:        now,
		sampleRate: sampleRate,
		frameHz:    frameHz,
		log:        blog.Discard,
		muted:      map[int]bool{},
		stopped:    map[int]bool{},
		solo:       -1,
	}
}

// SetObservers installs the orchestrator's callback set.
func (o *Orchestrator) SetObservers(obs Observers) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = obs
}

// SetLogger installs l as the orchestrator's logger; nil is ignored.
func (o *Orchestrator) SetLogger(l blog.Logger) {
	if l == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.log = l
}

// Play schedules every event in ism. Per spec.md §4.G: tickSeconds =
// 60/(bpm·speed)/4 per channel, startTime = now()+0.1 (pre-roll).
func (o *Orchestrator) Play(ism *resolve.ISM) error {
	o.mu.Lock()
	o.ism = ism
	o.repeat = ism.Play != nil && ism.Play.Repeat
	o.mu.Unlock()

	o.log.Info("play started", "chip", ism.Chip, "bpm", ism.BPM, "channels", len(ism.Channels))

	baseStart := o.now() + 0.1
	maxEnd := baseStart
	for _, ch := range ism.Channels {
		speed := ch.SpeedMultiplier
		if speed <= 0 {
			speed = 1
		}
		tickSec := 60 / (float64(ism.BPM) * speed) / 4
		end := o.scheduleChannel(ch, baseStart, tickSec)
		if end > maxEnd {
			maxEnd = end
		}
	}
	o.mu.Lock()
	o.lenSec = maxEnd - baseStart
	o.mu.Unlock()

	if o.obs.OnComplete != nil || o.repeat {
		o.sched.Schedule(maxEnd, func() {
			o.onSongComplete(ism, baseStart, maxEnd)
		})
	}
	return nil
}

func (o *Orchestrator) onSongComplete(ism *resolve.ISM, baseStart, prevEnd float64) {
	if o.obs.OnComplete != nil {
		o.obs.OnComplete()
	}
	if !o.repeat {
		return
	}
	if o.obs.OnRepeat != nil {
		o.obs.OnRepeat()
	}
	_ = o.Play(ism)
}

func (o *Orchestrator) scheduleChannel(ch resolve.ChannelISM, baseStart, tickSec float64) float64 {
	total := len(ch.Events)
	t := baseStart
	for i, ev := range ch.Events {
		i, ev := i, ev
		var dur int
		switch e := ev.(type) {
		case resolve.NoteEvent:
			dur = e.Duration
		case resolve.NamedHitEvent:
			dur = e.Duration
		case resolve.RestEvent:
			dur = e.Duration
		default:
			dur = 1
		}
		start := t
		durSec := float64(dur) * tickSec
		o.sched.Schedule(start, func() {
			o.fireEvent(ch.ID, ev, start, durSec, tickSec, i, total)
		})
		t += durSec
	}
	return t
}

func (o *Orchestrator) fireEvent(channelID int, ev resolve.ChannelEvent, start, durSec, tickSec float64, eventIndex, total int) {
	o.mu.Lock()
	muted := o.muted[channelID] || o.stopped[channelID] || (o.solo >= 0 && o.solo != channelID) || o.paused
	o.mu.Unlock()
	if muted {
		return
	}

	var (
		inst  *dsl.Instrument
		token string
		calls []dsl.EffectCall
	)
	switch e := ev.(type) {
	case resolve.NoteEvent:
		inst, token, calls = e.InstProps, e.Note, e.Effects
	case resolve.NamedHitEvent:
		inst, token, calls = e.InstProps, e.Name, e.Effects
	case resolve.RestEvent:
		return
	default:
		return
	}
	if inst == nil {
		return
	}

	freq := freqForToken(token)
	nodes := &effects.NodeSet{Cap: o.cap, BaseFreq: freq}
	ctx := &effects.Context{FrameHz: o.frameHz, OnWarn: func(diag.ResolveWarning) {}}

	if inst.Sweep != nil {
		o.effects.Apply(ctx, "sweep", nodes, []string{
			strconv.Itoa(inst.Sweep.Time), inst.Sweep.Direction, strconv.Itoa(inst.Sweep.Shift),
		}, start, durSec, channelID, tickSec, inst)
	}
	for _, call := range calls {
		o.effects.Apply(ctx, call.Name, nodes, call.Params, start, durSec, channelID, tickSec, inst)
	}

	voice := buildVoice(inst, freq, durSec, nodes.Mods, o.sampleRate)
	if voice == nil {
		o.log.Warn("no voice for instrument", "channel", channelID, "instrument", inst.Name, "type", inst.Type)
		return
	}

	pan := staticPan(nodes.Mods)
	o.mu.Lock()
	o.active = append(o.active, activeVoice{channelID: channelID, voice: voice, pan: pan, echo: buildEcho(nodes.Mods, o.sampleRate)})
	o.mu.Unlock()

	o.scheduleRetrigger(channelID, inst, freq, start, durSec, tickSec, nodes.Mods, pan)

	if o.obs.OnSchedule != nil {
		o.obs.OnSchedule(channelID, inst.Name, token, start, durSec)
	}
	if o.obs.OnPositionChange != nil {
		o.obs.OnPositionChange(channelID, eventIndex, total)
	}
}

// scheduleRetrigger spawns the repeated sub-voices a RetriggerMod
// describes: a fresh voice every IntervalTicks, each attenuated by one
// more step of VolumeDelta than the last, stopping at the parent
// event's end (spec.md §4.D retrigger).
func (o *Orchestrator) scheduleRetrigger(channelID int, inst *dsl.Instrument, freq, start, durSec, tickSec float64, mods []effects.Modulation, pan float64) {
	rt, ok := findRetrigger(mods)
	if !ok || rt.IntervalTicks <= 0 {
		return
	}
	step := float64(rt.IntervalTicks) * tickSec
	if step <= 0 {
		return
	}
	end := start + durSec
	mul := 1.0
	for t := start + step; t < end; t += step {
		t := t
		mul += rt.VolumeDelta
		mul := mul
		remaining := end - t
		o.sched.ScheduleAligned(t, func() {
			o.spawnRetriggerVoice(channelID, inst, freq, remaining, mul, pan)
		}, o.frameHz)
	}
}

func (o *Orchestrator) spawnRetriggerVoice(channelID int, inst *dsl.Instrument, freq, durSec, volMul, pan float64) {
	if durSec <= 0 {
		return
	}
	o.mu.Lock()
	muted := o.muted[channelID] || o.stopped[channelID] || (o.solo >= 0 && o.solo != channelID) || o.paused
	o.mu.Unlock()
	if muted {
		return
	}

	voice := buildVoice(inst, freq, durSec, nil, o.sampleRate)
	if voice == nil {
		return
	}
	if volMul < 0 {
		volMul = 0
	}
	voice.GainParam().SetValueAtTime(voice.GainParam().Value()*volMul, 0)

	o.mu.Lock()
	o.active = append(o.active, activeVoice{channelID: channelID, voice: voice, pan: pan})
	o.mu.Unlock()
}

func findRetrigger(mods []effects.Modulation) (effects.RetriggerMod, bool) {
	for _, m := range mods {
		if rt, ok := m.(effects.RetriggerMod); ok {
			return rt, true
		}
	}
	return effects.RetriggerMod{}, false
}

func buildEcho(mods []effects.Modulation, sampleRate int) *synth.EchoFilter {
	for _, m := range mods {
		if e, ok := m.(effects.EchoMod); ok {
			return synth.NewEchoFilter(e, sampleRate)
		}
	}
	return nil
}

func freqForToken(token string) float64 {
	if midi, ok := notes.NoteToMIDI(token); ok {
		return notes.Frequency(midi)
	}
	return notes.Frequency(60) // C4 fallback for named hits with no pitch
}

func staticPan(mods []effects.Modulation) float64 {
	for _, m := range mods {
		if p, ok := m.(effects.PanMod); ok {
			return (p.From + p.To) / 2
		}
	}
	return 0
}

func buildVoice(inst *dsl.Instrument, freq, durSec float64, mods []effects.Modulation, sampleRate int) synth.Voice {
	switch inst.Type {
	case "pulse1", "pulse2":
		duty := inst.Duty
		if duty == 0 {
			duty = 50
		}
		return synth.NewPulse(synth.PulseSpec{
			BaseFreq: freq, Duty: duty, Env: inst.Env, DurSec: durSec,
			Mods: mods, SampleRate: float64(sampleRate),
		})
	case "wave":
		vol := inst.Volume
		if vol == 0 {
			vol = 100
		}
		return synth.NewWave(synth.WaveSpec{
			Table: inst.Wave, BaseFreq: freq, Volume: vol, DurSec: durSec,
			Mods: mods, SampleRate: float64(sampleRate),
		})
	case "noise":
		shift, divisor, width7 := 0, 1, false
		if inst.Noise != nil {
			shift = inst.Noise.ClockShift
			divisor = inst.Noise.Divisor
			width7 = inst.Noise.WidthMode == 7
		}
		return synth.NewNoise(synth.NoiseSpec{
			ClockShift: shift, Divisor: divisor, Width7: width7, Env: inst.Env,
			DurSec: durSec, Mods: mods, SampleRate: float64(sampleRate),
		})
	default:
		return nil
	}
}

// Mute sets whether channelID is silenced at fire time.
func (o *Orchestrator) Mute(channelID int, muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted[channelID] = muted
}

// Solo restricts audible playback to exactly channelID; Unsolo clears it.
func (o *Orchestrator) Solo(channelID int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.solo = channelID
}

func (o *Orchestrator) Unsolo() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.solo = -1
}

// Pause halts audible rendering without clearing scheduled state;
// Resume reverses it. Events that fire while paused are skipped, not
// deferred — a documented simplification (no real-time clock to rewind).
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = true
}

func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = false
}

// Paused reports whether playback is currently paused.
func (o *Orchestrator) Paused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// StopChannel silences channelID: its future scheduled events no-op and
// any of its currently active voices are released.
func (o *Orchestrator) StopChannel(channelID int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped[channelID] = true
	for i := range o.active {
		if o.active[i].channelID == channelID {
			o.active[i].voice.Release()
		}
	}
	o.log.Info("channel stopped", "channel", channelID)
}

// Stop is synchronous per spec.md §5: after it returns, no further fn
// from the cleared scheduler queue fires, every active voice has been
// released, and per-channel effect state is cleared.
func (o *Orchestrator) Stop() {
	o.sched.Stop()
	o.mu.Lock()
	for i := range o.active {
		o.active[i].voice.Release()
	}
	o.active = nil
	o.muted = map[int]bool{}
	o.stopped = map[int]bool{}
	o.solo = -1
	o.mu.Unlock()
	o.effects.ClearState()
	o.log.Info("play stopped")
}

// RenderBlock mixes every active voice's next frames samples into a
// stereo PCM buffer, dropping voices once they stop producing samples —
// the pull-model generalization of the teacher's GenerateAudio.
func (o *Orchestrator) RenderBlock(frames int) []int16 {
	mixer := synth.NewMixer(frames)
	if o.paused {
		return mixer.Drain()
	}

	o.mu.Lock()
	voices := make([]activeVoice, len(o.active))
	copy(voices, o.active)
	o.mu.Unlock()

	live := voices[:0]
	buf := make([]float32, frames)
	for _, av := range voices {
		for i := range buf {
			buf[i] = 0
		}
		n := av.voice.Render(buf)
		if n > 0 {
			wet := buf[:n]
			if av.echo != nil {
				wet = av.echo.Process(wet)
			}
			mixer.AddVoice(wet, av.pan)
		}
		if n == frames {
			live = append(live, av)
		}
	}

	o.mu.Lock()
	o.active = append([]activeVoice(nil), live...)
	o.mu.Unlock()

	return mixer.Drain()
}

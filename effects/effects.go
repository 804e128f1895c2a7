// Package effects implements the BeatBax effect registry: a name→handler
// mapping of parameterized audio transforms applied to a per-voice node
// set at sample-accurate times.
package effects

import (
	"strings"
	"sync"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/internal/diag"
)

// Capability lists which optional node factories the playback host
// provides. Effects branch on capability presence instead of the
// try/catch-around-audio-nodes style the system replaces (spec.md §9).
type Capability struct {
	Oscillator   bool
	Gain         bool
	BufferSource bool
	StereoPanner bool
}

// Modulation is one scheduled shaping operation a voice carries forward
// into synthesis. Channel Synthesis (package synth) consumes NodeSet.Mods
// at render time; this package only produces them.
type Modulation interface {
	modNode()
}

type modBase struct{}

func (modBase) modNode() {}

type PanMod struct {
	modBase
	From, To         float64
	StartSec, DurSec float64
}

type VibratoMod struct {
	modBase
	DepthHz, RateHz  float64
	Waveform         string
	StartSec, DurSec float64
}

type PortamentoMod struct {
	modBase
	FromFreq, ToFreq float64
	StartSec, DurSec float64
}

type ArpeggioMod struct {
	modBase
	Offsets          []int
	FrameHz          float64
	StartSec, DurSec float64
}

type VolSlideMod struct {
	modBase
	From, To         float64
	Steps            int
	StartSec, DurSec float64
}

type TremoloMod struct {
	modBase
	Depth, RateHz    float64
	Waveform         string
	StartSec, DurSec float64
}

type CutMod struct {
	modBase
	AtSec   float64
	FadeSec float64
}

type RetriggerMod struct {
	modBase
	IntervalTicks int
	VolumeDelta   float64
	TickSec       float64
}

type BendMod struct {
	modBase
	Semitones        float64
	Curve            string
	DelaySec, TimeSec float64
}

type SweepMod struct {
	modBase
	Time, Shift      int
	Direction        string
	FinalFreq        float64
	StartSec, DurSec float64
}

type EchoMod struct {
	modBase
	DelaySec, Feedback, Mix float64
}

// NodeSet is the per-voice node graph a handler shapes. BaseFreq is the
// voice's unmodulated frequency, stashed by F so effects can compute
// relative ramps (spec.md §4.F "_baseFreq").
type NodeSet struct {
	Cap      Capability
	BaseFreq float64
	Mods     []Modulation
}

func (n *NodeSet) append(m Modulation) {
	if n == nil {
		return
	}
	n.Mods = append(n.Mods, m)
}

// Context is the injected host environment a handler may consult: the
// chip's native frame rate (for arp) and the diagnostics sink.
type Context struct {
	FrameHz float64
	OnWarn  diag.OnWarn
}

func (c *Context) warn(kind diag.WarningKind, msg string) {
	if c == nil || c.OnWarn == nil {
		return
	}
	c.OnWarn(diag.ResolveWarning{Kind: kind, Message: msg})
}

// Handler is an effect's implementation. Every handler must tolerate a
// nil ctx, nodes, or empty params by no-oping rather than panicking
// (spec.md §4.D, testable property 7).
type Handler func(ctx *Context, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) error

// Registry is the process-wide name→handler mapping. It also holds the
// per-channel portamento last-frequency state the "port" handler needs
// to persist across rests (spec.md §3 lifecycles, §8 property 8).
type Registry struct {
	mu             sync.Mutex
	handlers       map[string]Handler
	portamentoLast map[int]float64
}

// NewRegistry returns a Registry with every built-in effect registered.
func NewRegistry() *Registry {
	r := &Registry{
		handlers:       map[string]Handler{},
		portamentoLast: map[int]float64{},
	}
	registerBuiltins(r)
	return r
}

// Register installs (or replaces) the handler for name, case-folded.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[strings.ToLower(name)] = h
}

// Get returns the handler registered for name, or (nil, false).
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[strings.ToLower(name)]
	return h, ok
}

// ClearState wipes per-channel effect state. Called by the playback
// orchestrator's stop(); after it returns, the portamento map is empty
// (spec.md §8 property 8).
func (r *Registry) ClearState() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portamentoLast = map[int]float64{}
}

func (r *Registry) lastFreq(channelID int) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.portamentoLast[channelID]
	return f, ok
}

func (r *Registry) setLastFreq(channelID int, f float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portamentoLast[channelID] = f
}

// Apply looks up name and invokes its handler, recovering and reporting
// any panic as an EffectFailure rather than letting it propagate
// (spec.md §4.D, §7 — effects never block further events).
func (r *Registry) Apply(ctx *Context, name string, nodes *NodeSet, params []string, startSec, durSec float64, channelID int, tickSec float64, inst *dsl.Instrument) (failure *diag.EffectFailure) {
	h, ok := r.Get(name)
	if !ok {
		return &diag.EffectFailure{Effect: name, Channel: channelID, Message: "unknown effect"}
	}
	defer func() {
		if rec := recover(); rec != nil {
			failure = &diag.EffectFailure{Effect: name, Channel: channelID, Message: "handler panicked"}
		}
	}()
	if err := h(ctx, nodes, params, startSec, durSec, channelID, tickSec, inst); err != nil {
		return &diag.EffectFailure{Effect: name, Channel: channelID, Message: err.Error()}
	}
	return nil
}

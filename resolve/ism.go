// Package resolve expands a parsed dsl.Song into the Intermediate Song
// Model (ISM): a fully expanded, per-channel event stream ready for
// playback scheduling.
package resolve

import "github.com/kadraman/beatbax/dsl"

// ChannelEvent is the closed sum type for ISM events (spec.md §9's
// REDESIGN FLAG replacing a dynamic event bag).
type ChannelEvent interface {
	eventNode()
}

type eventBase struct{}

func (eventBase) eventNode() {}

// NoteEvent is a sounding note with its resolved instrument.
type NoteEvent struct {
	eventBase
	Note       string
	Instrument string
	Duration   int
	Effects    []dsl.EffectCall
	InstProps  *dsl.Instrument
}

// RestEvent is a silent tick span.
type RestEvent struct {
	eventBase
	Duration int
}

// SustainEvent models a "_"/"-" token. Per spec.md §3's invariant it is
// never present in a resolved ISM: it is folded into the preceding
// event's Duration during the resolve walk. The type exists only so
// ChannelEvent's sum type is complete for exhaustive switches.
type SustainEvent struct {
	eventBase
}

// NamedHitEvent is an immediate instrument hit produced by hit(name,N),
// a temp-inst countdown reaching end of pattern, or a bare token that
// names a known instrument.
type NamedHitEvent struct {
	eventBase
	Name       string
	Instrument string
	Duration   int
	Effects    []dsl.EffectCall
	InstProps  *dsl.Instrument
}

// ChannelISM is one channel's fully expanded event stream.
type ChannelISM struct {
	ID                int
	InstrumentDefault string
	SpeedMultiplier   float64
	Events            []ChannelEvent
}

// ISM is the resolved song: the same scalar fields as dsl.Song plus
// every channel's expanded events.
type ISM struct {
	Chip     string
	BPM      int
	Volume   int
	Time     string
	Metadata dsl.Metadata
	Channels []ChannelISM
	Play     *dsl.PlayStmt
}

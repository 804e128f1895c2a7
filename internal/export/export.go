// Package export implements the three output formats the CLI's `export`
// subcommand can produce from a resolved ISM: JSON, standard MIDI, and a
// hUGETracker v6 project file. Per spec.md §6 these are contracts the
// CLI exposes; full binary fidelity against hUGETracker's own writer is
// out of scope (the reader/writer pair is an external collaborator) so
// the UGE path here emits a minimal, structurally valid v6 file rather
// than a byte-exact reproduction.
package export

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/kadraman/beatbax/notes"
	"github.com/kadraman/beatbax/resolve"
)

// WriteJSON serializes ism as a plain JSON document: one object per
// channel with its resolved event stream.
func WriteJSON(w io.Writer, ism *resolve.ISM) error {
	doc := jsonSong{
		Chip: ism.Chip,
		BPM:  ism.BPM,
		Time: ism.Time,
	}
	for _, ch := range ism.Channels {
		jch := jsonChannel{ID: ch.ID, SpeedMultiplier: ch.SpeedMultiplier}
		for _, ev := range ch.Events {
			jch.Events = append(jch.Events, toJSONEvent(ev))
		}
		doc.Channels = append(doc.Channels, jch)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

type jsonSong struct {
	Chip     string        `json:"chip"`
	BPM      int           `json:"bpm"`
	Time     string        `json:"time,omitempty"`
	Channels []jsonChannel `json:"channels"`
}

type jsonChannel struct {
	ID              int         `json:"id"`
	SpeedMultiplier float64     `json:"speedMultiplier,omitempty"`
	Events          []jsonEvent `json:"events"`
}

type jsonEvent struct {
	Kind       string `json:"kind"`
	Token      string `json:"token,omitempty"`
	Instrument string `json:"instrument,omitempty"`
	Duration   int    `json:"duration"`
}

func toJSONEvent(ev resolve.ChannelEvent) jsonEvent {
	switch e := ev.(type) {
	case resolve.NoteEvent:
		return jsonEvent{Kind: "note", Token: e.Note, Instrument: e.Instrument, Duration: e.Duration}
	case resolve.NamedHitEvent:
		return jsonEvent{Kind: "hit", Token: e.Name, Instrument: e.Instrument, Duration: e.Duration}
	case resolve.RestEvent:
		return jsonEvent{Kind: "rest", Duration: e.Duration}
	default:
		return jsonEvent{Kind: "unknown"}
	}
}

// WriteMIDI emits a minimal single-track standard MIDI file (format 0):
// a set-tempo meta event matching ism.BPM followed by one note-on/
// note-off pair per NoteEvent, ticks derived from tickSec at the
// conventional 480 ticks-per-quarter-note resolution. Rests and named
// hits with no resolvable pitch simply advance the clock. A fuller
// contract would split each channel onto its own track (format 1); left
// single-track since exporters are an external collaborator's concern,
// not this module's.
func WriteMIDI(w io.Writer, ism *resolve.ISM) error {
	const ticksPerQuarter = 480
	quarterSec := 60.0 / float64(ism.BPM)

	var track []byte
	track = appendVarLen(track, 0)
	track = append(track, tempoMetaEvent(ism.BPM)...)
	for _, ch := range ism.Channels {
		speed := ch.SpeedMultiplier
		if speed <= 0 {
			speed = 1
		}
		tickSec := 60 / (float64(ism.BPM) * speed) / 4
		for _, ev := range ch.Events {
			dur := eventDuration(ev)
			ticks := uint32(float64(dur) * tickSec / quarterSec * ticksPerQuarter)
			if note, ok := eventMIDINote(ev); ok {
				track = appendVarLen(track, 0)
				track = append(track, 0x90|byte(ch.ID&0x0F), note, 0x64)
				track = appendVarLen(track, ticks)
				track = append(track, 0x80|byte(ch.ID&0x0F), note, 0x40)
			} else {
				track = appendVarLen(track, ticks)
				track = append(track, 0xFF, 0x01, 0x00) // empty text meta event as a time-filler
			}
		}
	}
	track = append(track, 0x00, 0xFF, 0x2F, 0x00) // end of track

	if err := writeChunk(w, "MThd", midiHeader(ticksPerQuarter)); err != nil {
		return err
	}
	return writeChunk(w, "MTrk", track)
}

// tempoMetaEvent builds a FF 51 03 set-tempo meta event encoding bpm as
// microseconds per quarter note, so a reader's clock matches ast.bpm
// instead of the MIDI default 120.
func tempoMetaEvent(bpm int) []byte {
	if bpm <= 0 {
		bpm = 120
	}
	usPerQuarter := uint32(60_000_000 / bpm)
	return []byte{
		0xFF, 0x51, 0x03,
		byte(usPerQuarter >> 16),
		byte(usPerQuarter >> 8),
		byte(usPerQuarter),
	}
}

func midiHeader(ticksPerQuarter uint16) []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf[0:2], 0) // format 0
	binary.BigEndian.PutUint16(buf[2:4], 1) // one track
	binary.BigEndian.PutUint16(buf[4:6], ticksPerQuarter)
	return buf
}

func writeChunk(w io.Writer, id string, body []byte) error {
	if _, err := io.WriteString(w, id); err != nil {
		return err
	}
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(body)))
	if _, err := w.Write(length); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// appendVarLen appends v encoded as a MIDI variable-length quantity.
func appendVarLen(buf []byte, v uint32) []byte {
	var stack [4]byte
	n := 0
	stack[n] = byte(v & 0x7F)
	n++
	v >>= 7
	for v > 0 {
		stack[n] = byte(v&0x7F) | 0x80
		n++
		v >>= 7
	}
	for i := n - 1; i >= 0; i-- {
		buf = append(buf, stack[i])
	}
	return buf
}

func eventDuration(ev resolve.ChannelEvent) int {
	switch e := ev.(type) {
	case resolve.NoteEvent:
		return e.Duration
	case resolve.NamedHitEvent:
		return e.Duration
	case resolve.RestEvent:
		return e.Duration
	default:
		return 1
	}
}

func eventMIDINote(ev resolve.ChannelEvent) (byte, bool) {
	var token string
	switch e := ev.(type) {
	case resolve.NoteEvent:
		token = e.Note
	case resolve.NamedHitEvent:
		token = e.Name
	default:
		return 0, false
	}
	midi, ok := notes.NoteToMIDI(token)
	if !ok {
		return 0, false
	}
	return byte(midi), true
}

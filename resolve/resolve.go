package resolve

import (
	"fmt"

	clone "github.com/huandu/go-clone/generic"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/internal/diag"
)

// Options configures Resolve. OnWarn receives every non-fatal
// diagnostic Resolve reports (unresolved pattern/sequence references,
// unknown instruments, unknown transforms); a nil OnWarn discards them.
// Resolve does not check arpeggio offsets, and deprecated-envelope
// warnings come from the parser, not from Resolve.
type Options struct {
	OnWarn diag.OnWarn
}

// Resolve expands an AST into its ISM, per spec.md §4.C. It is a pure
// function of its input: resolving the same AST twice yields
// byte-identical ISMs (spec.md §8 property 4).
func Resolve(song *dsl.Song, opts Options) (*ISM, error) {
	onWarn := opts.OnWarn
	if onWarn == nil {
		onWarn = func(diag.ResolveWarning) {}
	}

	seenIDs := map[int]bool{}
	channels := make([]ChannelISM, 0, len(song.Channels))

	for _, ch := range song.Channels {
		if seenIDs[ch.ID] {
			return nil, &diag.PlaybackError{Message: fmt.Sprintf("duplicate channel id %d", ch.ID)}
		}
		seenIDs[ch.ID] = true

		items, err := dsl.ParseSequenceRHS(ch.Ref, ch.Loc.Start.Line)
		if err != nil {
			return nil, err
		}

		atoms, err := expandItems(song, items, onWarn, 0)
		if err != nil {
			return nil, err
		}

		events := walkAtoms(song, ch.InstrumentDefault, atoms, onWarn)

		speed := 1.0
		if ch.HasSpeed {
			speed = ch.SpeedMultiplier
		}
		channels = append(channels, ChannelISM{
			ID:                ch.ID,
			InstrumentDefault: ch.InstrumentDefault,
			SpeedMultiplier:   speed,
			Events:            events,
		})
	}

	return &ISM{
		Chip:     song.Chip,
		BPM:      song.BPM,
		Volume:   song.Volume,
		Time:     song.Time,
		Metadata: song.Metadata,
		Channels: channels,
		Play:     song.Play,
	}, nil
}

// resolvedAtom pairs a parsed pattern atom with a transform-time
// instrument override (set by an "inst(name)" item/pattern transform).
// ForcedInst wins over the walk's currentInst/tempInst state without
// mutating it, so the override is scoped to exactly the atoms it
// originated from.
type resolvedAtom struct {
	atom       dsl.PatternAtom
	forcedInst string
}

const maxExpandDepth = 64

// expandItems flattens an ordered list of sequence items (pattern or
// sequence references, with their own transforms/repeat) into a single
// resolvedAtom stream.
func expandItems(song *dsl.Song, items []dsl.SequenceItem, onWarn diag.OnWarn, depth int) ([]resolvedAtom, error) {
	if depth > maxExpandDepth {
		return nil, &diag.PlaybackError{Message: "sequence expansion exceeded maximum depth (possible self-reference)"}
	}
	var out []resolvedAtom
	for _, item := range items {
		expanded, err := expandItem(song, item, onWarn, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func expandItem(song *dsl.Song, item dsl.SequenceItem, onWarn diag.OnWarn, depth int) ([]resolvedAtom, error) {
	var base []resolvedAtom
	var err error

	switch {
	case item.Group != nil:
		base, err = expandItems(song, item.Group, onWarn, depth+1)
	case song.Seqs[item.BaseName] != nil:
		base, err = expandItems(song, song.Seqs[item.BaseName].Items, onWarn, depth+1)
	case song.Pats[item.BaseName] != nil:
		pat := song.Pats[item.BaseName]
		base = atomsToResolved(pat.Atoms)
		base = applyTransforms(song, base, pat.Transforms, onWarn)
	default:
		onWarn(diag.ResolveWarning{
			Kind:    diag.WarnUnknownReference,
			Message: "unresolved pattern/sequence reference " + item.BaseName,
			Loc:     item.Loc,
		})
	}
	if err != nil {
		return nil, err
	}

	base = applyTransforms(song, base, item.Transforms, onWarn)

	repeat := item.Repeat
	if repeat < 1 {
		repeat = 1
	}
	out := make([]resolvedAtom, 0, len(base)*repeat)
	for i := 0; i < repeat; i++ {
		out = append(out, base...)
	}
	return out, nil
}

func atomsToResolved(atoms []dsl.PatternAtom) []resolvedAtom {
	out := make([]resolvedAtom, len(atoms))
	for i, a := range atoms {
		out[i] = resolvedAtom{atom: a}
	}
	return out
}

// walkAtoms is the token-walk state machine of spec.md §4.C step 3.
func walkAtoms(song *dsl.Song, channelDefaultInst string, atoms []resolvedAtom, onWarn diag.OnWarn) []ChannelEvent {
	currentInst := channelDefaultInst
	var tempInst string
	tempRemaining := 0

	warnedMissingInst := map[string]bool{}
	resolveInstProps := func(name string, loc diag.Location) *dsl.Instrument {
		inst, ok := song.Insts[name]
		if !ok {
			if !warnedMissingInst[name] {
				warnedMissingInst[name] = true
				onWarn(diag.ResolveWarning{Kind: diag.WarnUnknownInstrument, Message: "unknown instrument " + name, Loc: loc})
			}
			return nil
		}
		return clone.Clone(inst)
	}

	effectiveInst := func(ra resolvedAtom) string {
		if ra.forcedInst != "" {
			return ra.forcedInst
		}
		if tempRemaining > 0 {
			return tempInst
		}
		return currentInst
	}

	decrementTemp := func() {
		if tempRemaining > 0 {
			tempRemaining--
			if tempRemaining == 0 {
				tempInst = ""
			}
		}
	}

	hasFutureNoteProducing := func(rest []resolvedAtom) bool {
		for _, ra := range rest {
			switch ra.atom.(type) {
			case dsl.NoteAtom, dsl.TokenAtom, dsl.HitAtom:
				return true
			}
		}
		return false
	}

	var events []ChannelEvent
	foldSustain := func() {
		if len(events) == 0 {
			return
		}
		switch last := events[len(events)-1].(type) {
		case NoteEvent:
			last.Duration++
			events[len(events)-1] = last
		case RestEvent:
			last.Duration++
			events[len(events)-1] = last
		case NamedHitEvent:
			last.Duration++
			events[len(events)-1] = last
		}
	}

	for i, ra := range atoms {
		switch a := ra.atom.(type) {
		case dsl.InlineInstAtom:
			currentInst = a.Name

		case dsl.TempInstAtom:
			if hasFutureNoteProducing(atoms[i+1:]) {
				tempInst, tempRemaining = a.Name, a.Count
			} else {
				for k := 0; k < a.Count; k++ {
					events = append(events, NamedHitEvent{
						Name: a.Name, Instrument: a.Name, Duration: 1,
						InstProps: resolveInstProps(a.Name, a.Location()),
					})
				}
			}

		case dsl.HitAtom:
			for k := 0; k < a.Count; k++ {
				events = append(events, NamedHitEvent{
					Name: a.Name, Instrument: a.Name, Duration: 1,
					InstProps: resolveInstProps(a.Name, a.Location()),
				})
			}

		case dsl.RestAtom:
			events = append(events, RestEvent{Duration: a.Duration})

		case dsl.SustainAtom:
			foldSustain()

		case dsl.TokenAtom:
			if _, isInst := song.Insts[a.Raw]; isInst {
				inst := a.Raw
				events = append(events, NamedHitEvent{
					Name: inst, Instrument: inst, Duration: a.Duration, Effects: a.Effects,
					InstProps: resolveInstProps(inst, a.Location()),
				})
				currentInst = inst
				decrementTemp()
				continue
			}
			inst := effectiveInst(ra)
			events = append(events, NoteEvent{
				Note: a.Raw, Instrument: inst, Duration: a.Duration, Effects: a.Effects,
				InstProps: resolveInstProps(inst, a.Location()),
			})
			decrementTemp()

		case dsl.NoteAtom:
			inst := effectiveInst(ra)
			events = append(events, NoteEvent{
				Note: a.Value, Instrument: inst, Duration: a.Duration, Effects: a.Effects,
				InstProps: resolveInstProps(inst, a.Location()),
			})
			decrementTemp()
		}
	}

	return events
}

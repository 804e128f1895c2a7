package resolve

import (
	"strconv"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/internal/diag"
	"github.com/kadraman/beatbax/notes"
)

// applyTransforms runs a pattern's or sequence item's modifier chain
// over a resolved atom stream, in declared order (spec.md §3, §4.C
// step 1).
func applyTransforms(song *dsl.Song, atoms []resolvedAtom, transforms []dsl.Transform, onWarn diag.OnWarn) []resolvedAtom {
	for _, tr := range transforms {
		switch tr.Kind {
		case "oct":
			atoms = transposeAtoms(atoms, intArg(tr.Args, 0)*12)
		case "transpose":
			atoms = transposeAtoms(atoms, intArg(tr.Args, 0))
		case "rev":
			atoms = reverseAtoms(atoms)
		case "slow":
			atoms = scaleDuration(atoms, intArg(tr.Args, 1), true)
		case "fast":
			atoms = scaleDuration(atoms, intArg(tr.Args, 1), false)
		case "inst":
			atoms = forceInst(atoms, strArg(tr.Args))
		case "pan":
			atoms = mergeEffect(atoms, dsl.EffectCall{Name: "pan", Params: tr.Args})
		default:
			if preset, ok := song.Effects[tr.Kind]; ok {
				atoms = mergeEffect(atoms, preset.Call)
			} else {
				onWarn(diag.ResolveWarning{
					Kind:    diag.WarnUnknownTransform,
					Message: "unknown transform " + tr.Kind,
					Loc:     tr.Loc,
				})
			}
		}
	}
	return atoms
}

func intArg(args []string, def int) int {
	if len(args) == 0 {
		return def
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return def
	}
	return n
}

func strArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func transposeAtoms(atoms []resolvedAtom, semitones int) []resolvedAtom {
	if semitones == 0 {
		return atoms
	}
	out := make([]resolvedAtom, len(atoms))
	for i, ra := range atoms {
		if note, ok := ra.atom.(dsl.NoteAtom); ok {
			if midi, ok := notes.NoteToMIDI(note.Value); ok {
				note.Value = notes.MIDIToNote(midi + semitones)
			}
			ra.atom = note
		}
		out[i] = ra
	}
	return out
}

func reverseAtoms(atoms []resolvedAtom) []resolvedAtom {
	out := make([]resolvedAtom, len(atoms))
	for i, ra := range atoms {
		out[len(atoms)-1-i] = ra
	}
	return out
}

func scaleDuration(atoms []resolvedAtom, n int, slow bool) []resolvedAtom {
	if n < 1 {
		n = 1
	}
	out := make([]resolvedAtom, len(atoms))
	for i, ra := range atoms {
		switch a := ra.atom.(type) {
		case dsl.NoteAtom:
			a.Duration = scaleOne(a.Duration, n, slow)
			ra.atom = a
		case dsl.RestAtom:
			a.Duration = scaleOne(a.Duration, n, slow)
			ra.atom = a
		case dsl.TokenAtom:
			a.Duration = scaleOne(a.Duration, n, slow)
			ra.atom = a
		}
		out[i] = ra
	}
	return out
}

func scaleOne(dur, n int, slow bool) int {
	if slow {
		return dur * n
	}
	result := dur / n
	if result < 1 {
		result = 1
	}
	return result
}

func forceInst(atoms []resolvedAtom, name string) []resolvedAtom {
	if name == "" {
		return atoms
	}
	out := make([]resolvedAtom, len(atoms))
	for i, ra := range atoms {
		switch ra.atom.(type) {
		case dsl.NoteAtom, dsl.TokenAtom, dsl.HitAtom:
			ra.forcedInst = name
		}
		out[i] = ra
	}
	return out
}

func mergeEffect(atoms []resolvedAtom, call dsl.EffectCall) []resolvedAtom {
	out := make([]resolvedAtom, len(atoms))
	for i, ra := range atoms {
		switch a := ra.atom.(type) {
		case dsl.NoteAtom:
			a.Effects = mergeEffectList(a.Effects, call)
			ra.atom = a
		case dsl.TokenAtom:
			a.Effects = mergeEffectList(a.Effects, call)
			ra.atom = a
		}
		out[i] = ra
	}
	return out
}

// mergeEffectList appends call unless an effect of the same name is
// already present, in which case the existing one wins (spec.md §3).
func mergeEffectList(existing []dsl.EffectCall, call dsl.EffectCall) []dsl.EffectCall {
	for _, e := range existing {
		if e.Name == call.Name {
			return existing
		}
	}
	return append(existing, call)
}

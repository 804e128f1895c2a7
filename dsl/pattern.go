package dsl

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kadraman/beatbax/notes"
)

var (
	instCallRe = regexp.MustCompile(`^inst\(([A-Za-z_][A-Za-z0-9_]*)(?:\s*,\s*(\d+))?\)$`)
	hitCallRe  = regexp.MustCompile(`^hit\(([A-Za-z_][A-Za-z0-9_]*)\s*,\s*(\d+)\)$`)
)

// parsePatternBody parses a pattern right-hand side into its ordered atom
// list. Each whitespace-separated token may carry one or more
// "<effect:params>" suffixes and a trailing ":N" duration.
func parsePatternBody(body string, line int) ([]PatternAtom, error) {
	toks, cols := fieldsWithCols(body)
	atoms := make([]PatternAtom, 0, len(toks))
	for i, tok := range toks {
		atom, err := parsePatternAtomToken(tok, line, cols[i])
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}
	return atoms, nil
}

func parsePatternAtomToken(raw string, line, col int) (PatternAtom, error) {
	loc := Location{Start: Position{Line: line, Column: col}, End: Position{Line: line, Column: col + len(raw)}}

	base, effects, duration, err := splitAtomToken(raw)
	if err != nil {
		return nil, newParseError(loc, "%s", err.Error())
	}

	switch base {
	case notes.RestToken:
		return RestAtom{atomBase{loc}, duration}, nil
	}
	if notes.IsSustain(base) {
		return SustainAtom{atomBase{loc}}, nil
	}

	if m := instCallRe.FindStringSubmatch(base); m != nil {
		if m[2] == "" {
			return InlineInstAtom{atomBase{loc}, m[1]}, nil
		}
		n, _ := strconv.Atoi(m[2])
		return TempInstAtom{atomBase{loc}, m[1], n}, nil
	}
	if m := hitCallRe.FindStringSubmatch(base); m != nil {
		n, _ := strconv.Atoi(m[2])
		return HitAtom{atomBase{loc}, m[1], n}, nil
	}

	if _, ok := notes.NoteToMIDI(base); ok {
		return NoteAtom{atomBase{loc}, base, duration, effects}, nil
	}
	return TokenAtom{atomBase{loc}, base, duration, effects}, nil
}

// splitAtomToken separates a raw pattern token into its base text, any
// "<name:params>" effect groups, and a trailing ":N" duration (default 1).
func splitAtomToken(raw string) (base string, effects []EffectCall, duration int, err error) {
	duration = 1

	idx := strings.IndexByte(raw, '<')
	if idx < 0 {
		// No effect groups: a bare ":N" duration suffix may follow the
		// base note/token directly, e.g. "C4:4".
		base = raw
		if ci := strings.LastIndexByte(base, ':'); ci >= 0 {
			if n, convErr := strconv.Atoi(base[ci+1:]); convErr == nil && n >= 1 {
				duration = n
				base = base[:ci]
			}
		}
		return base, effects, duration, nil
	}

	base = raw[:idx]
	rest := raw[idx:]
	for strings.HasPrefix(rest, "<") {
		closeIdx := strings.IndexByte(rest, '>')
		if closeIdx < 0 {
			return "", nil, 0, &malformedAtomError{raw}
		}
		content := rest[1:closeIdx]
		rest = rest[closeIdx+1:]

		name := content
		var params []string
		if ci := strings.IndexByte(content, ':'); ci >= 0 {
			name = content[:ci]
			for _, p := range strings.Split(content[ci+1:], ",") {
				params = append(params, strings.TrimSpace(p))
			}
		}
		effects = append(effects, EffectCall{Name: strings.ToLower(strings.TrimSpace(name)), Params: params})
	}

	if rest == "" {
		return base, effects, duration, nil
	}
	if !strings.HasPrefix(rest, ":") {
		return "", nil, 0, &malformedAtomError{raw}
	}
	n, convErr := strconv.Atoi(rest[1:])
	if convErr != nil || n < 1 {
		return "", nil, 0, &malformedAtomError{raw}
	}
	duration = n
	return base, effects, duration, nil
}

type malformedAtomError struct{ raw string }

func (e *malformedAtomError) Error() string {
	return "malformed pattern atom " + strconv.Quote(e.raw)
}

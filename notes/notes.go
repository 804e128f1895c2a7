// Package notes implements note-name/MIDI/frequency conversion and the
// pattern-text expansion and transposition grammar shared by the parser
// and song resolver.
package notes

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RestToken is the pattern atom that represents silence.
const RestToken = "."

// SustainTokens extend the previous event's duration by one tick and are
// folded away before reaching the ISM.
var SustainTokens = map[string]bool{"_": true, "-": true}

var noteRe = regexp.MustCompile(`^([A-Ga-g])([#b]?)(-?\d+)$`)

var letterSemitone = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

var sharpNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteToMIDI parses a note name like "C#4" or "Eb-1" into a MIDI index.
// The second return value is false when name is not a recognized note.
func NoteToMIDI(name string) (int, bool) {
	m := noteRe.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return 0, false
	}
	letter := byte(strings.ToUpper(m[1])[0])
	base, ok := letterSemitone[letter]
	if !ok {
		return 0, false
	}
	switch m[2] {
	case "#":
		base++
	case "b":
		base--
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	return (octave+1)*12 + base, true
}

// MIDIToNote renders a MIDI index back to a note name, sharps only.
func MIDIToNote(midi int) string {
	octave := midi/12 - 1
	semitone := midi % 12
	if semitone < 0 {
		semitone += 12
		octave--
	}
	return fmt.Sprintf("%s%d", sharpNames[semitone], octave)
}

// Frequency returns the frequency in Hz of a MIDI note, A4 (69) = 440Hz.
func Frequency(midi int) float64 {
	return 440.0 * math.Pow(2, float64(midi-69)/12.0)
}

// IsRest reports whether a pattern token represents a rest.
func IsRest(tok string) bool {
	return tok == RestToken
}

// IsSustain reports whether a pattern token extends the previous event.
func IsSustain(tok string) bool {
	return SustainTokens[tok]
}

// ExpandPattern expands whitespace-separated pattern text, honoring
// element repeat (X*N) and parenthesised groups ((…)*N), nesting allowed.
// Malformed "X*" (no count, or a non-numeric count) yields the token
// unchanged. "*0" yields an empty expansion for that element.
func ExpandPattern(text string) []string {
	toks := tokenizeGroups(text)
	return expandTokens(toks)
}

// group is either a literal token or a parenthesised sub-sequence,
// optionally repeated N times.
type group struct {
	literal string // set when this is a plain token (no parens)
	inner   []group
	isGroup bool
	repeat  int // 1 when no *N suffix was present
}

func tokenizeGroups(text string) []group {
	fields := splitTopLevel(text)
	groups := make([]group, 0, len(fields))
	for _, f := range fields {
		groups = append(groups, parseField(f))
	}
	return groups
}

// splitTopLevel splits on whitespace but keeps parenthesised groups intact
// even if they contain internal whitespace.
func splitTopLevel(text string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case (r == ' ' || r == '\t' || r == '\n') && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func parseField(f string) group {
	if strings.HasPrefix(f, "(") {
		// find matching close paren, then optional *N suffix
		depth := 0
		closeIdx := -1
		for i, r := range f {
			if r == '(' {
				depth++
			} else if r == ')' {
				depth--
				if depth == 0 {
					closeIdx = i
					break
				}
			}
		}
		if closeIdx == -1 {
			// malformed, treat as a literal
			return group{literal: f, repeat: 1}
		}
		inner := f[1:closeIdx]
		rest := f[closeIdx+1:]
		repeat := 1
		if strings.HasPrefix(rest, "*") {
			n, ok := parseRepeatCount(rest[1:])
			if ok {
				repeat = n
			} else {
				// malformed count: treat whole field as a literal token
				return group{literal: f, repeat: 1}
			}
		}
		return group{isGroup: true, inner: tokenizeGroups(inner), repeat: repeat}
	}

	if idx := strings.IndexByte(f, '*'); idx >= 0 {
		base, countStr := f[:idx], f[idx+1:]
		n, ok := parseRepeatCount(countStr)
		if !ok {
			return group{literal: f, repeat: 1}
		}
		return group{literal: base, repeat: n}
	}

	return group{literal: f, repeat: 1}
}

func parseRepeatCount(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func expandTokens(groups []group) []string {
	var out []string
	for _, g := range groups {
		if g.isGroup {
			inner := expandTokens(g.inner)
			for i := 0; i < g.repeat; i++ {
				out = append(out, inner...)
			}
			continue
		}
		for i := 0; i < g.repeat; i++ {
			out = append(out, g.literal)
		}
	}
	return out
}

// Transpose shifts every recognized note token by semitones (plus
// octaves*12 additional semitones). Rests pass through unchanged; tokens
// that aren't recognized notes (identifiers, sustains) pass through
// unchanged too.
func Transpose(atoms []string, semitones, octaves int) []string {
	shift := semitones + octaves*12
	out := make([]string, len(atoms))
	for i, a := range atoms {
		if IsRest(a) || IsSustain(a) {
			out[i] = a
			continue
		}
		midi, ok := NoteToMIDI(a)
		if !ok {
			out[i] = a
			continue
		}
		out[i] = MIDIToNote(midi + shift)
	}
	return out
}

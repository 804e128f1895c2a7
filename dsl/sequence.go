package dsl

import (
	"strconv"
	"strings"
)

// parseSequenceBody parses a sequence/arrange right-hand side into its
// ordered item list. Items may be comma- or whitespace-separated, carry
// ":mod" suffix chains, "*N" repetition, and parenthesised "(...)*N"
// groups (nesting allowed).
func parseSequenceBody(body string, line int) ([]SequenceItem, error) {
	return parseSequenceItems(body, line)
}

// ParseSequenceRHS exposes sequence-item parsing to the resolve package,
// which applies the identical grammar to a channel's own reference text
// (spec.md §4.C step 2: a channel ref is split and resolved exactly like
// a sequence body).
func ParseSequenceRHS(body string, line int) ([]SequenceItem, error) {
	return parseSequenceItems(body, line)
}

func parseSequenceItems(body string, line int) ([]SequenceItem, error) {
	toks := splitTopLevelItems(body)
	items := make([]SequenceItem, 0, len(toks))
	for _, tok := range toks {
		item, err := parseSequenceItem(tok, line)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// splitTopLevelItems splits on ',' or whitespace that is not nested
// inside parentheses.
func splitTopLevelItems(s string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case depth == 0 && (r == ',' || r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func parseSequenceItem(tok string, line int) (SequenceItem, error) {
	tok = strings.TrimSpace(tok)
	loc := Location{Start: Position{Line: line, Column: 1}, End: Position{Line: line, Column: 1 + len(tok)}}

	if strings.HasPrefix(tok, "(") {
		depth := 0
		closeIdx := -1
		for i, r := range tok {
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
			return SequenceItem{}, newParseError(loc, "unmatched '(' in sequence item %q", tok)
		}
		inner := tok[1:closeIdx]
		rest := tok[closeIdx+1:]

		repeat := 1
		segs := splitTopLevelColon(rest)
		if len(segs) > 0 && strings.HasPrefix(segs[0], "*") {
			n, err := strconv.Atoi(segs[0][1:])
			if err != nil {
				return SequenceItem{}, newParseError(loc, "malformed repeat count %q", segs[0])
			}
			repeat = n
			segs = segs[1:]
		} else if len(segs) > 0 && segs[0] != "" {
			return SequenceItem{}, newParseError(loc, "unexpected suffix %q after group", segs[0])
		}

		var transforms []Transform
		for _, seg := range segs {
			if seg == "" {
				continue
			}
			transforms = append(transforms, parseTransformSeg(seg))
		}

		innerItems, err := parseSequenceItems(inner, line)
		if err != nil {
			return SequenceItem{}, err
		}
		return SequenceItem{Group: innerItems, Repeat: repeat, Transforms: transforms, Loc: loc}, nil
	}

	segs := splitTopLevelColon(tok)
	head := segs[0]
	name := head
	repeat := 1
	if idx := strings.IndexByte(head, '*'); idx >= 0 {
		name = head[:idx]
		n, err := strconv.Atoi(head[idx+1:])
		if err != nil {
			return SequenceItem{}, newParseError(loc, "malformed repeat count in %q", head)
		}
		repeat = n
	}

	var transforms []Transform
	for _, seg := range segs[1:] {
		transforms = append(transforms, parseTransformSeg(seg))
	}

	return SequenceItem{BaseName: name, Transforms: transforms, Repeat: repeat, Loc: loc}, nil
}

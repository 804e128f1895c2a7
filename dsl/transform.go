package dsl

import "strings"

// splitTopLevelColon splits on ':' that is not nested inside parentheses,
// e.g. "P:oct(-1):rev" -> ["P", "oct(-1)", "rev"].
func splitTopLevelColon(s string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case r == ':' && depth == 0:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	out = append(out, cur.String())
	return out
}

// parseTransformSeg parses one modifier segment such as "oct(-1)", "rev",
// "slow(2)", "inst(bass)", or a bare identifier naming an effect preset.
func parseTransformSeg(seg string) Transform {
	seg = strings.TrimSpace(seg)
	if idx := strings.IndexByte(seg, '('); idx >= 0 && strings.HasSuffix(seg, ")") {
		kind := seg[:idx]
		argsStr := seg[idx+1 : len(seg)-1]
		var args []string
		if argsStr != "" {
			for _, a := range strings.Split(argsStr, ",") {
				args = append(args, strings.TrimSpace(a))
			}
		}
		return Transform{Kind: kind, Args: args}
	}
	return Transform{Kind: seg}
}

// parseNameWithTransforms splits a "NAME:mod1:mod2" declaration head into
// the base name and its ordered transform list.
func parseNameWithTransforms(s string) (string, []Transform) {
	segs := splitTopLevelColon(s)
	name := segs[0]
	var transforms []Transform
	for _, seg := range segs[1:] {
		transforms = append(transforms, parseTransformSeg(seg))
	}
	return name, transforms
}

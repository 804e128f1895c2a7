package dsl

import (
	"strconv"
	"strings"

	"github.com/kadraman/beatbax/internal/diag"
	"github.com/kadraman/beatbax/notes"
)

// Options configures Parse. The parser reports non-fatal diagnostics
// through OnWarn and has no strict mode of its own; strict handling of
// duplicate imported instrument names is importer.Options.StrictMode.
type Options struct {
	OnWarn diag.OnWarn
}

// Parse turns BeatBax DSL source text into a Song AST. It never
// suspends and never reads imports; import expansion happens in a
// separate pass (the importer package) before resolve.
func Parse(source string, opts Options) (*Song, error) {
	song := NewSong()
	lines := splitLines(source)

	inChannelBlock := false

	for _, rl := range lines {
		stmt, err := parseStatement(rl, &inChannelBlock, opts)
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			continue
		}
		song.Statements = append(song.Statements, stmt)
		applyStatement(song, stmt)
	}

	return song, nil
}

func applyStatement(song *Song, stmt Statement) {
	switch s := stmt.(type) {
	case ChipStmt:
		song.Chip, song.HasChip = s.Chip, true
	case BpmStmt:
		song.BPM, song.HasBPM = s.BPM, true
	case VolumeStmt:
		song.Volume, song.HasVol = s.Volume, true
	case TimeStmt:
		song.Time, song.HasTime = s.Time, true
	case SongMetaStmt:
		applySongMeta(song, s)
	case ImportStmt:
		song.Imports = append(song.Imports, ImportDecl{Source: s.Source, Loc: s.Loc})
	case InstStmt:
		if _, exists := song.Insts[s.Inst.Name]; !exists {
			song.InstOrder = append(song.InstOrder, s.Inst.Name)
		}
		song.Insts[s.Inst.Name] = s.Inst
	case EffectPresetStmt:
		if _, exists := song.Effects[s.Preset.Name]; !exists {
			song.EffectOrder = append(song.EffectOrder, s.Preset.Name)
		}
		song.Effects[s.Preset.Name] = s.Preset
	case PatternStmt:
		if _, exists := song.Pats[s.Pattern.Name]; !exists {
			song.PatOrder = append(song.PatOrder, s.Pattern.Name)
		}
		song.Pats[s.Pattern.Name] = s.Pattern
	case SequenceStmt:
		if _, exists := song.Seqs[s.Sequence.Name]; !exists {
			song.SeqOrder = append(song.SeqOrder, s.Sequence.Name)
		}
		song.Seqs[s.Sequence.Name] = s.Sequence
	case ArrangeStmt:
		if _, exists := song.Seqs[s.Sequence.Name]; !exists {
			song.SeqOrder = append(song.SeqOrder, s.Sequence.Name)
		}
		song.Seqs[s.Sequence.Name] = s.Sequence
	case ChannelStmt:
		song.Channels = append(song.Channels, s.Channel)
	case PlayStmt:
		p := s
		song.Play = &p
	case ExportStmt:
		song.Exports = append(song.Exports, s)
	}
}

func applySongMeta(song *Song, s SongMetaStmt) {
	switch s.Field {
	case "name":
		song.Metadata.Name = s.Value
	case "artist":
		song.Metadata.Artist = s.Value
	case "tags":
		var tags []string
		for _, t := range strings.Split(s.Value, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, t)
			}
		}
		song.Metadata.Tags = tags
	case "description":
		song.Metadata.Description = s.Value
	}
}

func parseStatement(rl rawLine, inChannelBlock *bool, opts Options) (Statement, error) {
	line := rl.text
	keyword, rest := splitKeyword(line)
	loc := Location{
		Start: Position{Line: rl.line, Column: 1},
		End:   Position{Line: rl.line, Column: 1 + len(line)},
	}

	switch keyword {
	case "chip":
		return ChipStmt{stmtBase{loc}, strings.TrimSpace(rest)}, nil

	case "bpm":
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return nil, newParseError(loc, "invalid bpm value %q", rest)
		}
		return BpmStmt{stmtBase{loc}, n}, nil

	case "volume":
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return nil, newParseError(loc, "invalid volume value %q", rest)
		}
		return VolumeStmt{stmtBase{loc}, n}, nil

	case "time":
		return TimeStmt{stmtBase{loc}, strings.TrimSpace(rest)}, nil

	case "song":
		return parseSongMeta(rest, loc)

	case "import":
		src := strings.Trim(strings.TrimSpace(rest), `"`)
		return ImportStmt{stmtBase{loc}, src}, nil

	case "inst":
		return parseInstStmt(rest, rl.line, loc, opts)

	case "effect":
		return parseEffectPresetStmt(rest, loc)

	case "pat":
		return parsePatternStmt(rest, rl.line, loc, opts)

	case "seq":
		return parseSequenceStmt(rest, rl.line, loc, false)

	case "arrange":
		return parseSequenceStmt(rest, rl.line, loc, true)

	case "channel":
		return parseChannelStmt(rest, rl.line, loc)

	case "play":
		return parsePlayStmt(rest, loc), nil

	case "export":
		return parseExportStmt(rest, loc)
	}

	return nil, newParseError(loc, "unrecognized statement %q", line)
}

func splitKeyword(line string) (string, string) {
	line = strings.TrimSpace(line)
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return line, ""
	}
	return line[:idx], line[idx+1:]
}

func parseSongMeta(rest string, loc Location) (Statement, error) {
	field, valRaw := splitKeyword(rest)
	field = strings.ToLower(strings.TrimSpace(field))
	switch field {
	case "name", "artist", "tags", "description":
	default:
		return nil, newParseError(loc, "unknown song metadata field %q", field)
	}
	val, ok := afterEquals(valRaw)
	if !ok {
		val = strings.Trim(strings.TrimSpace(valRaw), `"`)
	}
	return SongMetaStmt{stmtBase{loc}, field, val}, nil
}

func parseInstStmt(rest string, line int, loc Location, opts Options) (Statement, error) {
	name, kvText := splitKeyword(rest)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newParseError(loc, "inst statement missing name")
	}

	inst := &Instrument{Name: name, Loc: loc, Volume: 100}
	toks := fields(kvText)
	for _, tok := range toks {
		eq := strings.IndexByte(tok, '=')
		if eq < 0 {
			return nil, newParseError(loc, "malformed inst property %q", tok)
		}
		key := tok[:eq]
		val := tok[eq+1:]
		if err := applyInstProperty(inst, key, val, loc, opts); err != nil {
			return nil, err
		}
	}
	return InstStmt{stmtBase{loc}, inst}, nil
}

func applyInstProperty(inst *Instrument, key, val string, loc Location, opts Options) error {
	switch key {
	case "type":
		inst.Type = val
	case "duty":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return newParseError(loc, "invalid duty value %q", val)
		}
		inst.Duty = f
	case "volume":
		n, err := strconv.Atoi(val)
		if err != nil {
			return newParseError(loc, "invalid volume value %q", val)
		}
		inst.Volume = n
	case "env", "envelope":
		env, legacy, err := parseEnvelope(val)
		if err != nil {
			return newParseError(loc, "invalid envelope %q: %s", val, err.Error())
		}
		inst.Env = env
		if legacy && opts.OnWarn != nil {
			opts.OnWarn(diag.ResolveWarning{Kind: diag.WarnDeprecatedEnvelope, Message: "legacy CSV envelope form used for " + inst.Name, Loc: loc})
		}
	case "sweep":
		sw, err := parseSweep(val)
		if err != nil {
			return newParseError(loc, "invalid sweep %q: %s", val, err.Error())
		}
		inst.Sweep = sw
	case "noise":
		ns, err := parseNoise(val)
		if err != nil {
			return newParseError(loc, "invalid noise %q: %s", val, err.Error())
		}
		inst.Noise = ns
	case "wave":
		w, err := parseWave(val)
		if err != nil {
			return newParseError(loc, "invalid wave table %q: %s", val, err.Error())
		}
		inst.Wave = w
	default:
		return newParseError(loc, "unknown instrument property %q", key)
	}
	return nil
}

// parseEnvelope accepts both the structured "initial:12,direction:down,period:0"
// form and the legacy CSV "12,down" / "12,down,0" form (§3, §9).
func parseEnvelope(val string) (*Envelope, bool, error) {
	parts := strings.Split(val, ",")
	if len(parts) == 0 {
		return nil, false, &malformedAtomError{val}
	}
	if strings.Contains(parts[0], ":") {
		env := &Envelope{Direction: "none"}
		for _, p := range parts {
			kv := strings.SplitN(p, ":", 2)
			if len(kv) != 2 {
				return nil, false, &malformedAtomError{val}
			}
			switch kv[0] {
			case "initial":
				n, err := strconv.Atoi(kv[1])
				if err != nil {
					return nil, false, err
				}
				env.Initial = n
			case "direction":
				env.Direction = kv[1]
			case "period":
				n, err := strconv.Atoi(kv[1])
				if err != nil {
					return nil, false, err
				}
				env.Period = n
			}
		}
		return env, false, nil
	}

	initial, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, false, err
	}
	env := &Envelope{Initial: initial, Direction: "none"}
	if len(parts) > 1 {
		env.Direction = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, false, err
		}
		env.Period = n
	}
	return env, true, nil
}

func parseSweep(val string) (*Sweep, error) {
	parts := strings.Split(val, ",")
	if len(parts) != 3 {
		return nil, &malformedAtomError{val}
	}
	time, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, err
	}
	shift, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, err
	}
	return &Sweep{Time: time, Direction: strings.TrimSpace(parts[1]), Shift: shift}, nil
}

func parseNoise(val string) (*Noise, error) {
	parts := strings.Split(val, ",")
	if len(parts) != 3 {
		return nil, &malformedAtomError{val}
	}
	clockShift, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, err
	}
	widthMode, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, err
	}
	divisor, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, err
	}
	return &Noise{ClockShift: clockShift, WidthMode: widthMode, Divisor: divisor}, nil
}

func parseWave(val string) ([16]uint8, error) {
	var out [16]uint8
	parts := strings.Split(val, ",")
	if len(parts) != 16 {
		return out, &malformedAtomError{val}
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 15 {
			return out, &malformedAtomError{val}
		}
		out[i] = uint8(n)
	}
	return out, nil
}

func parseEffectPresetStmt(rest string, loc Location) (Statement, error) {
	name := beforeEquals(rest)
	rhs, ok := afterEquals(rest)
	if !ok {
		return nil, newParseError(loc, "effect statement missing '='")
	}
	call := parseEffectCallText(rhs, loc)
	return EffectPresetStmt{stmtBase{loc}, &EffectPreset{Name: strings.TrimSpace(name), Call: call, Loc: loc}}, nil
}

// parseEffectCallText parses "vib:4,6" into an EffectCall.
func parseEffectCallText(s string, loc Location) EffectCall {
	s = strings.TrimSpace(s)
	name := s
	var params []string
	if ci := strings.IndexByte(s, ':'); ci >= 0 {
		name = s[:ci]
		for _, p := range strings.Split(s[ci+1:], ",") {
			params = append(params, strings.TrimSpace(p))
		}
	}
	return EffectCall{Name: strings.ToLower(strings.TrimSpace(name)), Params: params, Loc: loc}
}

func parsePatternStmt(rest string, line int, loc Location, opts Options) (Statement, error) {
	head := beforeEquals(rest)
	body, ok := afterEquals(rest)
	if !ok {
		return nil, newParseError(loc, "pattern statement missing '='")
	}
	name, transforms := parseNameWithTransforms(strings.TrimSpace(head))
	atoms, err := parsePatternBody(body, line)
	if err != nil {
		return nil, err
	}
	if opts.OnWarn != nil && looksLikeNoteName(name) {
		opts.OnWarn(diag.ResolveWarning{Kind: diag.WarnPatternName, Message: "pattern name " + strconv.Quote(name) + " resembles a note or is a single letter", Loc: loc})
	}
	return PatternStmt{stmtBase{loc}, &Pattern{Name: name, Transforms: transforms, Atoms: atoms, Loc: loc}}, nil
}

// looksLikeNoteName reports whether a pattern name is a single letter or
// otherwise shaped like a note token, making it easy to confuse with a
// literal note in a sequence (spec.md §4.B).
func looksLikeNoteName(name string) bool {
	if len(name) == 1 {
		return true
	}
	_, ok := notes.NoteToMIDI(name)
	return ok
}

func parseSequenceStmt(rest string, line int, loc Location, isArrange bool) (Statement, error) {
	name := strings.TrimSpace(beforeEquals(rest))
	body, ok := afterEquals(rest)
	if !ok {
		return nil, newParseError(loc, "sequence statement missing '='")
	}
	items, err := parseSequenceBody(body, line)
	if err != nil {
		return nil, err
	}
	seq := &Sequence{Name: name, Items: items, Loc: loc}
	if isArrange {
		return ArrangeStmt{stmtBase{loc}, seq}, nil
	}
	return SequenceStmt{stmtBase{loc}, seq}, nil
}

func parseChannelStmt(rest string, line int, loc Location) (Statement, error) {
	idText, after := splitKeyword(rest)
	id, err := strconv.Atoi(strings.TrimSpace(idText))
	if err != nil {
		return nil, newParseError(loc, "invalid channel id %q", idText)
	}

	after = strings.TrimSpace(after)
	arrow := "=>"
	ai := strings.Index(after, arrow)
	if ai < 0 {
		return nil, newParseError(loc, "channel statement missing '=>'")
	}
	after = strings.TrimSpace(after[ai+len(arrow):])

	toks := fields(after)
	ch := &Channel{ID: id, Loc: loc}
	i := 0
	for i < len(toks) {
		switch toks[i] {
		case "inst":
			if i+1 >= len(toks) {
				return nil, newParseError(loc, "channel 'inst' missing name")
			}
			ch.InstrumentDefault = toks[i+1]
			i += 2
		case "seq":
			if i+1 >= len(toks) {
				return nil, newParseError(loc, "channel 'seq' missing name")
			}
			ch.RefIsSequence = true
			ch.Ref = toks[i+1]
			i += 2
		case "pat":
			if i+1 >= len(toks) {
				return nil, newParseError(loc, "channel 'pat' missing name")
			}
			ch.RefIsSequence = false
			ch.Ref = toks[i+1]
			i += 2
		case "speed":
			if i+1 >= len(toks) {
				return nil, newParseError(loc, "channel 'speed' missing value")
			}
			f, err := strconv.ParseFloat(toks[i+1], 64)
			if err != nil {
				return nil, newParseError(loc, "invalid channel speed %q", toks[i+1])
			}
			ch.SpeedMultiplier, ch.HasSpeed = f, true
			i += 2
		case "bpm":
			return nil, newParseError(loc, "channel-local bpm is forbidden")
		default:
			return nil, newParseError(loc, "unexpected token %q in channel statement", toks[i])
		}
	}
	if ch.Ref == "" {
		return nil, newParseError(loc, "channel statement missing seq/pat reference")
	}
	return ChannelStmt{stmtBase{loc}, ch}, nil
}

func parsePlayStmt(rest string, loc Location) Statement {
	toks := fields(rest)
	p := PlayStmt{stmtBase: stmtBase{loc}}
	for _, t := range toks {
		switch t {
		case "auto":
			p.Auto = true
		case "repeat":
			p.Repeat = true
		}
	}
	return p
}

func parseExportStmt(rest string, loc Location) (Statement, error) {
	format, pathText := splitKeyword(rest)
	format = strings.ToLower(strings.TrimSpace(format))
	path := strings.Trim(strings.TrimSpace(pathText), `"`)
	if path == "" {
		return nil, newParseError(loc, "export statement missing path")
	}
	return ExportStmt{stmtBase{loc}, format, path}, nil
}

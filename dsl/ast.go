// Package dsl implements the BeatBax song-description language: a
// hand-written lexer and recursive-descent parser that turns source text
// into a typed AST with source locations attached to every node.
package dsl

import "github.com/kadraman/beatbax/internal/diag"

// Location and Position are re-exported from internal/diag so callers
// outside this module never need to import it directly.
type Location = diag.Location
type Position = diag.Position

// Statement is the closed sum type for every top-level DSL construct.
// Every concrete statement embeds a Location and implements this marker
// interface so the parser can emit Song.Statements as a typed sequence.
type Statement interface {
	stmtNode()
	Location() Location
}

type stmtBase struct{ Loc Location }

func (stmtBase) stmtNode()            {}
func (s stmtBase) Location() Location { return s.Loc }

type ChipStmt struct {
	stmtBase
	Chip string
}

type BpmStmt struct {
	stmtBase
	BPM int
}

type VolumeStmt struct {
	stmtBase
	Volume int
}

type TimeStmt struct {
	stmtBase
	Time string
}

type SongMetaStmt struct {
	stmtBase
	Field string // name|artist|tags|description
	Value string
}

type ImportStmt struct {
	stmtBase
	Source string
}

type InstStmt struct {
	stmtBase
	Inst *Instrument
}

type EffectPresetStmt struct {
	stmtBase
	Preset *EffectPreset
}

type PatternStmt struct {
	stmtBase
	Pattern *Pattern
}

type SequenceStmt struct {
	stmtBase
	Sequence *Sequence
}

// ArrangeStmt names an ordered arrangement of sequences, a thin alias
// over SequenceStmt's grammar (an "arrange" is a sequence of sequences).
type ArrangeStmt struct {
	stmtBase
	Sequence *Sequence
}

type ChannelStmt struct {
	stmtBase
	Channel *Channel
}

type PlayStmt struct {
	stmtBase
	Auto   bool
	Repeat bool
}

type ExportStmt struct {
	stmtBase
	Format string
	Path   string
}

// --- Data model types (spec.md §3) ---

// Metadata accumulates `song name|artist|tags|description "…"` statements.
type Metadata struct {
	Name        string
	Artist      string
	Tags        []string
	Description string
}

// ImportDecl is a resolved/unresolved import source reference.
type ImportDecl struct {
	Source string
	Loc    Location
}

// Envelope is the canonical (structured) envelope form. Legacy CSV-like
// forms ("12,down" or "12,down,0") are normalized to this by the parser,
// which also emits a WarnDeprecatedEnvelope via OnWarn.
type Envelope struct {
	Initial   int
	Direction string // "up", "down", "none"
	Period    int
}

// Sweep models the NR10-style pitch sweep, valid only on pulse1.
type Sweep struct {
	Time      int
	Direction string // "up" or "down"
	Shift     int
}

// Noise models the LFSR noise generator's tunable parameters.
type Noise struct {
	ClockShift int
	WidthMode  int // 7 or 15
	Divisor    int
}

// Instrument is a closed struct of typed, optional properties rather than
// a dynamic property bag (§9 REDESIGN FLAG).
type Instrument struct {
	Name   string
	Type   string // pulse1, pulse2, wave, noise
	Duty   float64
	Env    *Envelope
	Wave   [16]uint8
	Volume int // percent: 0, 25, 50, 100 (wave instruments; default 100)
	Sweep  *Sweep
	Noise  *Noise
	Loc    Location
}

// EffectCall is an inline effect attached to a note/token atom, e.g.
// "<arp:3,7>" parses to EffectCall{Name: "arp", Params: []string{"3","7"}}.
type EffectCall struct {
	Name   string
	Params []string
	Loc    Location
}

// EffectPreset is a named, reusable effect declared via
// "effect foo = vib:4,6" and usable as a sequence-item transform.
type EffectPreset struct {
	Name   string
	Call   EffectCall
	Loc    Location
}

// PatternAtom is the closed sum type for pattern event atoms (spec.md
// §3's Pattern data model).
type PatternAtom interface {
	atomNode()
	Location() Location
}

type atomBase struct{ Loc Location }

func (atomBase) atomNode()            {}
func (a atomBase) Location() Location { return a.Loc }

// NoteAtom is a literal note (e.g. "C4") with a duration in ticks and any
// inline effects attached via "<name:params>" suffixes.
type NoteAtom struct {
	atomBase
	Value    string
	Duration int
	Effects  []EffectCall
}

// RestAtom is a "." token.
type RestAtom struct {
	atomBase
	Duration int
}

// SustainAtom is a "_" or "-" token; it never survives into the ISM, it
// only extends the previous event's duration during resolution.
type SustainAtom struct {
	atomBase
}

// TokenAtom is an identifier reference to another pattern or instrument
// name, resolved during the song-resolve step.
type TokenAtom struct {
	atomBase
	Raw      string
	Duration int
	Effects  []EffectCall
}

// InlineInstAtom ("inst(name)") makes a permanent instrument change from
// this position onward; it produces no event of its own.
type InlineInstAtom struct {
	atomBase
	Name string
}

// TempInstAtom ("inst(name, N)") temporarily overrides the instrument for
// the next N note-producing events (or, if none remain, emits N
// immediate named hits instead — resolved in the resolve package).
type TempInstAtom struct {
	atomBase
	Name  string
	Count int
}

// HitAtom ("hit(name, N)") emits N named hits immediately. This extends
// the spec's pattern-atom set (the data model names inline-inst/temp-inst;
// the resolve algorithm additionally requires an immediate-hit form,
// supplemented here as its own atom rather than overloading TempInstAtom).
type HitAtom struct {
	atomBase
	Name  string
	Count int
}

// Transform is a single pattern/sequence-item modifier: oct(n), rev,
// slow(n), fast(n), inst(name), pan(v), transpose(n), or the name of a
// declared effect preset.
type Transform struct {
	Kind string
	Args []string
	Loc  Location
}

// Pattern is a named, ordered atom sequence with optional name-level
// transforms ("pat P:oct(-1):rev = ...").
type Pattern struct {
	Name       string
	Transforms []Transform
	Atoms      []PatternAtom
	Loc        Location
}

// SequenceItem references a pattern or sequence name with its own
// transforms and repeat count.
type SequenceItem struct {
	BaseName   string
	Transforms []Transform
	Repeat     int
	// Group holds nested items for a parenthesised "(A B)*N" group; when
	// non-nil, BaseName is unused.
	Group []SequenceItem
	Loc   Location
}

// Sequence is a named, ordered list of sequence items.
type Sequence struct {
	Name  string
	Items []SequenceItem
	Loc   Location
}

// Channel is the only channel form: `channel N => inst X (seq|pat) S`.
type Channel struct {
	ID                int
	InstrumentDefault string
	RefIsSequence     bool
	Ref               string
	SpeedMultiplier   float64
	HasSpeed          bool
	Loc               Location
}

// Song is the fully parsed AST for one source file, pre-import-merge.
type Song struct {
	Chip     string
	HasChip  bool
	BPM      int
	HasBPM   bool
	Volume   int
	HasVol   bool
	Time     string
	HasTime  bool
	Metadata Metadata

	Imports []ImportDecl

	Insts     map[string]*Instrument
	InstOrder []string

	Pats     map[string]*Pattern
	PatOrder []string

	Seqs     map[string]*Sequence
	SeqOrder []string

	Effects     map[string]*EffectPreset
	EffectOrder []string

	Channels []*Channel
	Play     *PlayStmt
	Exports  []ExportStmt

	Statements []Statement
	Loc        Location
}

// NewSong returns an empty Song ready for the parser to populate.
func NewSong() *Song {
	return &Song{
		Insts:   map[string]*Instrument{},
		Pats:    map[string]*Pattern{},
		Seqs:    map[string]*Sequence{},
		Effects: map[string]*EffectPreset{},
	}
}

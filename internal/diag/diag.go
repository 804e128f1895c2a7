// Package diag defines the error and warning taxonomy shared across the
// parser, resolver, importer, and playback orchestrator: ParseError,
// ResolveWarning, ImportError, PlaybackError, and EffectFailure.
package diag

import "fmt"

// Position is a 1-based line/column location in DSL source text.
type Position struct {
	Line   int
	Column int
}

// Location spans from Start to End in a source file.
type Location struct {
	Start Position
	End   Position
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Start.Line, l.Start.Column)
}

// ParseError is a fatal, ill-formed-input error produced by the parser.
// It carries the source location of the offending token.
type ParseError struct {
	Message string
	Loc     Location
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Loc, e.Message)
}

// WarningKind classifies a ResolveWarning.
type WarningKind int

const (
	WarnUnknownTransform WarningKind = iota
	WarnUnknownReference
	WarnUnknownInstrument
	WarnArpeggioRange
	WarnDeprecatedEnvelope
	WarnPatternName
	WarnDuplicateImport
	WarnSweepNotPulse1
)

func (k WarningKind) String() string {
	switch k {
	case WarnUnknownTransform:
		return "unknown-transform"
	case WarnUnknownReference:
		return "unknown-reference"
	case WarnUnknownInstrument:
		return "unknown-instrument"
	case WarnArpeggioRange:
		return "arpeggio-range"
	case WarnDeprecatedEnvelope:
		return "deprecated-envelope"
	case WarnPatternName:
		return "pattern-name"
	case WarnDuplicateImport:
		return "duplicate-import"
	case WarnSweepNotPulse1:
		return "sweep-not-pulse1"
	default:
		return "warning"
	}
}

// ResolveWarning is a non-fatal diagnostic collected during resolution (or
// parsing, for pattern-name warnings). Never halts the pipeline.
type ResolveWarning struct {
	Kind    WarningKind
	Message string
	Loc     Location
}

func (w ResolveWarning) String() string {
	return fmt.Sprintf("%s at %s: %s", w.Kind, w.Loc, w.Message)
}

// ImportError is fatal for the resolve step: a cycle, a disallowed
// protocol/domain, a forbidden local path, a remote fetch failure, or a
// ".ins" file containing statements other than inst/import.
type ImportError struct {
	Message string
	Source  string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import error (%s): %s", e.Source, e.Message)
}

// PlaybackError is fatal for a single play call: host context could not be
// resumed, an unsupported chip was requested, or a channel form is
// invalid.
type PlaybackError struct {
	Message string
}

func (e *PlaybackError) Error() string {
	return "playback error: " + e.Message
}

// EffectFailure records an effect handler panic/error recovered locally;
// it is never propagated, only optionally logged.
type EffectFailure struct {
	Effect  string
	Channel int
	Message string
}

func (e EffectFailure) String() string {
	return fmt.Sprintf("effect %q on channel %d failed: %s", e.Effect, e.Channel, e.Message)
}

// OnWarn is the injected diagnostics sink shape used by the parser,
// resolver, and importer. A nil OnWarn means warnings are discarded.
type OnWarn func(ResolveWarning)

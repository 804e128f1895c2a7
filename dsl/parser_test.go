package dsl

import (
	"strings"
	"testing"

	"github.com/kadraman/beatbax/internal/diag"
)

func mustParse(t *testing.T, src string) *Song {
	t.Helper()
	song, err := Parse(src, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return song
}

func TestParseMinimalSong(t *testing.T) {
	src := strings.Join([]string{
		"chip gameboy",
		"bpm 120",
		"inst lead type=pulse1 duty=50 env=12,down",
		"pat A = C4 E4 G4 C5",
		"seq main = A",
		"channel 1 => inst lead seq main",
	}, "\n")

	var warns []diag.ResolveWarning
	song, err := Parse(src, Options{OnWarn: func(w diag.ResolveWarning) { warns = append(warns, w) }})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if song.Chip != "gameboy" || !song.HasChip {
		t.Errorf("Chip = %q, HasChip = %v", song.Chip, song.HasChip)
	}
	if song.BPM != 120 || !song.HasBPM {
		t.Errorf("BPM = %d, HasBPM = %v", song.BPM, song.HasBPM)
	}

	lead, ok := song.Insts["lead"]
	if !ok {
		t.Fatalf("instrument %q not found", "lead")
	}
	if lead.Type != "pulse1" || lead.Duty != 50 {
		t.Errorf("lead = %+v", lead)
	}
	if lead.Env == nil || lead.Env.Initial != 12 || lead.Env.Direction != "down" || lead.Env.Period != 0 {
		t.Errorf("lead.Env = %+v", lead.Env)
	}

	foundDeprecation := false
	for _, w := range warns {
		if w.Kind == diag.WarnDeprecatedEnvelope {
			foundDeprecation = true
		}
	}
	if !foundDeprecation {
		t.Error("expected a WarnDeprecatedEnvelope warning for legacy CSV envelope")
	}

	pat, ok := song.Pats["A"]
	if !ok {
		t.Fatalf("pattern %q not found", "A")
	}
	if len(pat.Atoms) != 4 {
		t.Fatalf("len(pat.Atoms) = %d, want 4", len(pat.Atoms))
	}
	first, ok := pat.Atoms[0].(NoteAtom)
	if !ok || first.Value != "C4" {
		t.Errorf("pat.Atoms[0] = %#v", pat.Atoms[0])
	}

	seq, ok := song.Seqs["main"]
	if !ok {
		t.Fatalf("sequence %q not found", "main")
	}
	if len(seq.Items) != 1 || seq.Items[0].BaseName != "A" {
		t.Errorf("seq.Items = %+v", seq.Items)
	}

	if len(song.Channels) != 1 {
		t.Fatalf("len(song.Channels) = %d, want 1", len(song.Channels))
	}
	ch := song.Channels[0]
	if ch.ID != 1 || ch.InstrumentDefault != "lead" || !ch.RefIsSequence || ch.Ref != "main" {
		t.Errorf("channel = %+v", ch)
	}
}

func TestParseGroupRepetitionSequence(t *testing.T) {
	src := "pat A = C4\npat B = D4\nseq s = (A B)*2"
	song := mustParse(t, src)

	seq, ok := song.Seqs["s"]
	if !ok {
		t.Fatalf("sequence %q not found", "s")
	}
	if len(seq.Items) != 1 {
		t.Fatalf("len(seq.Items) = %d, want 1", len(seq.Items))
	}
	g := seq.Items[0]
	if g.Repeat != 2 || len(g.Group) != 2 {
		t.Fatalf("group item = %+v", g)
	}
	if g.Group[0].BaseName != "A" || g.Group[1].BaseName != "B" {
		t.Errorf("group members = %+v", g.Group)
	}
}

func TestParsePatternTransforms(t *testing.T) {
	song := mustParse(t, `pat P:oct(-1):rev = C4 D4 E4 F4`)
	pat, ok := song.Pats["P"]
	if !ok {
		t.Fatalf("pattern %q not found", "P")
	}
	if len(pat.Transforms) != 2 {
		t.Fatalf("len(pat.Transforms) = %d, want 2", len(pat.Transforms))
	}
	if pat.Transforms[0].Kind != "oct" || len(pat.Transforms[0].Args) != 1 || pat.Transforms[0].Args[0] != "-1" {
		t.Errorf("Transforms[0] = %+v", pat.Transforms[0])
	}
	if pat.Transforms[1].Kind != "rev" {
		t.Errorf("Transforms[1] = %+v", pat.Transforms[1])
	}
}

func TestParseChannelWithInlineGroupReference(t *testing.T) {
	song := mustParse(t, "pat P = C4 D4\nchannel 1 => inst lead seq (P:inst(bass))")
	ch := song.Channels[0]
	if !ch.RefIsSequence {
		t.Fatalf("channel.RefIsSequence = false, want true for a parenthesised group reference")
	}
	// The parenthesised "(P:inst(bass))" is itself an anonymous group
	// reference; the parser records it as the channel's literal ref text
	// for the resolver to expand, rather than registering a named sequence.
	if ch.Ref == "" {
		t.Errorf("channel.Ref is empty")
	}
}

func TestParseChannelRejectsLocalBPM(t *testing.T) {
	_, err := Parse("pat A = C4\nchannel 1 => inst lead pat A bpm 140", Options{})
	if err == nil {
		t.Fatal("expected an error for channel-local bpm")
	}
	perr, ok := err.(*diag.ParseError)
	if !ok {
		t.Fatalf("error type = %T, want *diag.ParseError", err)
	}
	if perr.Loc.Start.Line != 2 {
		t.Errorf("error line = %d, want 2", perr.Loc.Start.Line)
	}
}

func TestParseExportStatement(t *testing.T) {
	song := mustParse(t, `export json "out/song.json"`)
	if len(song.Exports) != 1 {
		t.Fatalf("len(song.Exports) = %d, want 1", len(song.Exports))
	}
	exp := song.Exports[0]
	if exp.Format != "json" || exp.Path != "out/song.json" {
		t.Errorf("export = %+v", exp)
	}
}

func TestParsePlayStatement(t *testing.T) {
	song := mustParse(t, "play auto repeat")
	if song.Play == nil || !song.Play.Auto || !song.Play.Repeat {
		t.Errorf("play = %+v", song.Play)
	}
}

func TestParseSongMetadata(t *testing.T) {
	src := strings.Join([]string{
		`song name "Chiptune Jam"`,
		`song artist "8-bit Band"`,
		`song tags "chiptune, retro"`,
		`song description "a demo song"`,
	}, "\n")
	song := mustParse(t, src)
	if song.Metadata.Name != "Chiptune Jam" {
		t.Errorf("Metadata.Name = %q", song.Metadata.Name)
	}
	if song.Metadata.Artist != "8-bit Band" {
		t.Errorf("Metadata.Artist = %q", song.Metadata.Artist)
	}
	if len(song.Metadata.Tags) != 2 || song.Metadata.Tags[0] != "chiptune" || song.Metadata.Tags[1] != "retro" {
		t.Errorf("Metadata.Tags = %+v", song.Metadata.Tags)
	}
	if song.Metadata.Description != "a demo song" {
		t.Errorf("Metadata.Description = %q", song.Metadata.Description)
	}
}

func TestParseImportStatement(t *testing.T) {
	song := mustParse(t, `import "local:bass.ins"`)
	if len(song.Imports) != 1 || song.Imports[0].Source != "local:bass.ins" {
		t.Errorf("Imports = %+v", song.Imports)
	}
}

func TestParseUnrecognizedStatement(t *testing.T) {
	_, err := Parse("frobnicate 1 2 3", Options{})
	if err == nil {
		t.Fatal("expected a parse error for an unrecognized statement")
	}
}

func TestParseEffectPreset(t *testing.T) {
	song := mustParse(t, "effect foo = vib:4,6")
	preset, ok := song.Effects["foo"]
	if !ok {
		t.Fatalf("effect preset %q not found", "foo")
	}
	if preset.Call.Name != "vib" || len(preset.Call.Params) != 2 || preset.Call.Params[0] != "4" || preset.Call.Params[1] != "6" {
		t.Errorf("preset.Call = %+v", preset.Call)
	}
}

func TestParseInlineEffectOnAtom(t *testing.T) {
	song := mustParse(t, "pat p = C4<arp:3,7>:4")
	pat := song.Pats["p"]
	if len(pat.Atoms) != 1 {
		t.Fatalf("len(pat.Atoms) = %d, want 1", len(pat.Atoms))
	}
	note, ok := pat.Atoms[0].(NoteAtom)
	if !ok {
		t.Fatalf("atom type = %T, want NoteAtom", pat.Atoms[0])
	}
	if note.Value != "C4" || note.Duration != 4 {
		t.Errorf("note = %+v", note)
	}
	if len(note.Effects) != 1 || note.Effects[0].Name != "arp" || len(note.Effects[0].Params) != 2 {
		t.Errorf("note.Effects = %+v", note.Effects)
	}
}

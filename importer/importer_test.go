package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/internal/blog"
	"github.com/kadraman/beatbax/internal/diag"
)

func mustParse(t *testing.T, src string) *dsl.Song {
	t.Helper()
	song, err := dsl.Parse(src, dsl.Options{})
	if err != nil {
		t.Fatalf("dsl.Parse() error = %v", err)
	}
	return song
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
	return path
}

func TestResolveLocalImportMergesInstrument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lead.ins", "inst lead type=pulse1 duty=50 env=12,down\n")

	base := writeFile(t, dir, "song.bbx", "")
	song := mustParse(t, "chip gameboy\nbpm 120\nimport local:lead.ins\nchannel 1 => inst lead pat A\n")

	out, err := Resolve(song, Options{BaseFilePath: base})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, ok := out.Insts["lead"]; !ok {
		t.Fatal("expected imported instrument \"lead\" to be merged")
	}
	if len(out.Imports) != 0 {
		t.Errorf("out.Imports = %v, want empty after resolution", out.Imports)
	}
}

func TestResolveLocalImportRejectsPathEscape(t *testing.T) {
	outerDir := t.TempDir()
	innerDir := filepath.Join(outerDir, "inner")
	if err := os.Mkdir(innerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, outerDir, "secret.ins", "inst x type=pulse1 duty=50\n")
	base := writeFile(t, innerDir, "song.bbx", "")

	song := mustParse(t, "import local:../secret.ins\n")
	_, err := Resolve(song, Options{BaseFilePath: base, SearchPaths: []string{innerDir}})
	if err == nil {
		t.Fatal("expected an error when a local import escapes the search root")
	}
	var impErr *diag.ImportError
	if !asImportError(err, &impErr) {
		t.Fatalf("error = %v, want *diag.ImportError", err)
	}
}

func TestResolveDetectsImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ins", "import local:b.ins\ninst a type=pulse1 duty=50\n")
	writeFile(t, dir, "b.ins", "import local:a.ins\ninst b type=pulse1 duty=50\n")
	base := writeFile(t, dir, "song.bbx", "")

	song := mustParse(t, "import local:a.ins\n")
	_, err := Resolve(song, Options{BaseFilePath: base})
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error = %v, want mention of a cycle", err)
	}
	if !strings.Contains(err.Error(), "a.ins") || !strings.Contains(err.Error(), "b.ins") {
		t.Errorf("error = %v, want both a.ins and b.ins named in the cycle chain", err)
	}
}

func TestResolveLogsCycleDetection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ins", "import local:b.ins\ninst a type=pulse1 duty=50\n")
	writeFile(t, dir, "b.ins", "import local:a.ins\ninst b type=pulse1 duty=50\n")
	base := writeFile(t, dir, "song.bbx", "")

	rec := &blog.Recording{}
	song := mustParse(t, "import local:a.ins\n")
	_, err := Resolve(song, Options{BaseFilePath: base, Log: rec})
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	found := false
	for _, e := range rec.Entries {
		if e.Level == blog.LevelError && strings.Contains(e.Msg, "cycle") {
			found = true
		}
	}
	if !found {
		t.Errorf("Recording entries = %+v, want an Error entry mentioning a cycle", rec.Entries)
	}
}

func TestResolveRejectsNonInsFileShape(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.ins", "chip gameboy\ninst a type=pulse1 duty=50\n")
	base := writeFile(t, dir, "song.bbx", "")

	song := mustParse(t, "import local:bad.ins\n")
	_, err := Resolve(song, Options{BaseFilePath: base})
	if err == nil {
		t.Fatal("expected an error for a .ins file containing non-inst/import statements")
	}
}

func TestResolveDuplicateImportWarnsByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ins", "inst lead type=pulse1 duty=50\n")
	writeFile(t, dir, "b.ins", "inst lead type=pulse2 duty=25\n")
	base := writeFile(t, dir, "song.bbx", "")

	song := mustParse(t, "import local:a.ins\nimport local:b.ins\n")

	var warnings []diag.ResolveWarning
	out, err := Resolve(song, Options{
		BaseFilePath: base,
		OnWarn:       func(w diag.ResolveWarning) { warnings = append(warnings, w) },
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a duplicate-import warning")
	}
	if warnings[0].Kind != diag.WarnDuplicateImport {
		t.Errorf("warning kind = %v, want WarnDuplicateImport", warnings[0].Kind)
	}
	if got := out.Insts["lead"]; got == nil || got.Type != "pulse1" {
		t.Error("expected the first-seen definition of \"lead\" (from a.ins) to win")
	}
}

func TestResolveDuplicateImportErrorsInStrictMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ins", "inst lead type=pulse1 duty=50\n")
	writeFile(t, dir, "b.ins", "inst lead type=pulse2 duty=25\n")
	base := writeFile(t, dir, "song.bbx", "")

	song := mustParse(t, "import local:a.ins\nimport local:b.ins\n")
	_, err := Resolve(song, Options{BaseFilePath: base, StrictMode: true})
	if err == nil {
		t.Fatal("expected an error for a duplicate import in strict mode")
	}
}

func TestResolveOwnInstrumentTakesPrecedenceOverImported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lead.ins", "inst lead type=pulse1 duty=50\n")
	base := writeFile(t, dir, "song.bbx", "")

	song := mustParse(t, "inst lead type=wave\nimport local:lead.ins\n")
	out, err := Resolve(song, Options{BaseFilePath: base})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Insts["lead"].Type != "wave" {
		t.Errorf("inst lead type = %q, want %q (the song's own instrument wins)", out.Insts["lead"].Type, "wave")
	}
}

func TestResolveGithubSourceExpandsToRawURL(t *testing.T) {
	song := mustParse(t, "import github:someone/somerepo/main/lead.ins\n")

	var gotURL string
	out, err := Resolve(song, Options{
		Fetch: func(ctx context.Context, url string) ([]byte, error) {
			gotURL = url
			return []byte("inst lead type=pulse1 duty=50\n"), nil
		},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := "https://raw.githubusercontent.com/someone/somerepo/main/lead.ins"
	if gotURL != want {
		t.Errorf("fetched URL = %q, want %q", gotURL, want)
	}
	if _, ok := out.Insts["lead"]; !ok {
		t.Error("expected the github-sourced instrument to be merged")
	}
}

func asImportError(err error, target **diag.ImportError) bool {
	if ie, ok := err.(*diag.ImportError); ok {
		*target = ie
		return true
	}
	return false
}

package resolve

import (
	"strings"
	"testing"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/internal/diag"
)

func mustResolve(t *testing.T, src string) *ISM {
	t.Helper()
	song, err := dsl.Parse(src, dsl.Options{})
	if err != nil {
		t.Fatalf("dsl.Parse() error = %v", err)
	}
	ism, err := Resolve(song, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return ism
}

func TestResolveMinimalSong(t *testing.T) {
	src := strings.Join([]string{
		"chip gameboy",
		"bpm 120",
		"inst lead type=pulse1 duty=50 env=12,down",
		"pat A = C4 E4 G4 C5",
		"seq main = A",
		"channel 1 => inst lead seq main",
	}, "\n")
	ism := mustResolve(t, src)

	if len(ism.Channels) != 1 {
		t.Fatalf("len(ism.Channels) = %d, want 1", len(ism.Channels))
	}
	events := ism.Channels[0].Events
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	first, ok := events[0].(NoteEvent)
	if !ok {
		t.Fatalf("events[0] type = %T, want NoteEvent", events[0])
	}
	if first.Note != "C4" || first.Instrument != "lead" {
		t.Errorf("events[0] = %+v", first)
	}
	if first.InstProps == nil || first.InstProps.Env == nil || first.InstProps.Env.Initial != 12 {
		t.Errorf("events[0].InstProps = %+v", first.InstProps)
	}
}

func TestResolveGroupRepetition(t *testing.T) {
	src := "pat A = C4\npat B = D4\nseq s = (A B)*2\nchannel 1 => inst lead seq s"
	ism := mustResolve(t, src)
	events := ism.Channels[0].Events
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	want := []string{"C4", "D4", "C4", "D4"}
	for i, w := range want {
		n, ok := events[i].(NoteEvent)
		if !ok || n.Note != w {
			t.Errorf("events[%d] = %+v, want note %q", i, events[i], w)
		}
	}
}

func TestResolvePatternTransformsOctaveAndReverse(t *testing.T) {
	src := "pat P:oct(-1):rev = C4 D4 E4 F4\nchannel 1 => inst lead seq P"
	ism := mustResolve(t, src)
	events := ism.Channels[0].Events
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	// oct(-1) transposes each note down one octave, then rev reverses
	// the resulting order.
	want := []string{"F3", "E3", "D3", "C3"}
	for i, w := range want {
		n, ok := events[i].(NoteEvent)
		if !ok || n.Note != w {
			t.Errorf("events[%d] = %+v, want note %q", i, events[i], w)
		}
	}
}

func TestResolveChannelInheritsInstrumentOverride(t *testing.T) {
	src := "pat P = C4 D4\nchannel 1 => inst lead seq (P:inst(bass))"
	ism := mustResolve(t, src)
	events := ism.Channels[0].Events
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	for i, ev := range events {
		n, ok := ev.(NoteEvent)
		if !ok || n.Instrument != "bass" {
			t.Errorf("events[%d] = %+v, want instrument bass", i, ev)
		}
	}
}

func TestResolveSustainFoldsIntoPreviousDuration(t *testing.T) {
	src := "pat p = C4 _ _ D4\nchannel 1 => inst lead pat p"
	ism := mustResolve(t, src)
	events := ism.Channels[0].Events
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	first, ok := events[0].(NoteEvent)
	if !ok || first.Note != "C4" || first.Duration != 3 {
		t.Errorf("events[0] = %+v, want C4 with duration 3", events[0])
	}
	second, ok := events[1].(NoteEvent)
	if !ok || second.Note != "D4" || second.Duration != 1 {
		t.Errorf("events[1] = %+v, want D4 with duration 1", events[1])
	}
}

func TestResolveTempInstOverride(t *testing.T) {
	src := "pat p = inst(bass,2) C4 D4 E4\nchannel 1 => inst lead pat p"
	ism := mustResolve(t, src)
	events := ism.Channels[0].Events
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if n := events[0].(NoteEvent); n.Instrument != "bass" {
		t.Errorf("events[0].Instrument = %q, want bass", n.Instrument)
	}
	if n := events[1].(NoteEvent); n.Instrument != "bass" {
		t.Errorf("events[1].Instrument = %q, want bass", n.Instrument)
	}
	if n := events[2].(NoteEvent); n.Instrument != "lead" {
		t.Errorf("events[2].Instrument = %q, want lead (override expired)", n.Instrument)
	}
}

func TestResolveTempInstAtEndOfPatternEmitsHits(t *testing.T) {
	src := "pat p = C4 inst(kick,3)\nchannel 1 => inst lead pat p"
	ism := mustResolve(t, src)
	events := ism.Channels[0].Events
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	for i := 1; i < 4; i++ {
		hit, ok := events[i].(NamedHitEvent)
		if !ok || hit.Name != "kick" {
			t.Errorf("events[%d] = %+v, want a kick NamedHitEvent", i, events[i])
		}
	}
}

func TestResolveHitAtomEmitsImmediateHits(t *testing.T) {
	src := "pat p = hit(kick,3) C4\nchannel 1 => inst lead pat p"
	ism := mustResolve(t, src)
	events := ism.Channels[0].Events
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	for i := 0; i < 3; i++ {
		hit, ok := events[i].(NamedHitEvent)
		if !ok || hit.Name != "kick" {
			t.Errorf("events[%d] = %+v, want a kick NamedHitEvent", i, events[i])
		}
	}
	if n, ok := events[3].(NoteEvent); !ok || n.Note != "C4" {
		t.Errorf("events[3] = %+v, want NoteEvent C4", events[3])
	}
}

func TestResolveDuplicateChannelIDFails(t *testing.T) {
	song, err := dsl.Parse("pat A = C4\nchannel 1 => inst lead pat A\nchannel 1 => inst lead pat A", dsl.Options{})
	if err != nil {
		t.Fatalf("dsl.Parse() error = %v", err)
	}
	_, err = Resolve(song, Options{})
	if err == nil {
		t.Fatal("expected an error for a duplicate channel id")
	}
	if _, ok := err.(*diag.PlaybackError); !ok {
		t.Errorf("error type = %T, want *diag.PlaybackError", err)
	}
}

func TestResolveUnknownInstrumentWarns(t *testing.T) {
	var warns []diag.ResolveWarning
	song, err := dsl.Parse("pat A = C4\nchannel 1 => inst ghost pat A", dsl.Options{})
	if err != nil {
		t.Fatalf("dsl.Parse() error = %v", err)
	}
	_, err = Resolve(song, Options{OnWarn: func(w diag.ResolveWarning) { warns = append(warns, w) }})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	found := false
	for _, w := range warns {
		if w.Kind == diag.WarnUnknownInstrument {
			found = true
		}
	}
	if !found {
		t.Error("expected a WarnUnknownInstrument warning")
	}
}

func TestResolveUnknownReferenceWarns(t *testing.T) {
	var warns []diag.ResolveWarning
	song, err := dsl.Parse("channel 1 => inst lead seq missing", dsl.Options{})
	if err != nil {
		t.Fatalf("dsl.Parse() error = %v", err)
	}
	_, err = Resolve(song, Options{OnWarn: func(w diag.ResolveWarning) { warns = append(warns, w) }})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	found := false
	for _, w := range warns {
		if w.Kind == diag.WarnUnknownReference {
			found = true
		}
	}
	if !found {
		t.Error("expected a WarnUnknownReference warning")
	}
}

func TestResolveDeterministic(t *testing.T) {
	src := strings.Join([]string{
		"pat A = C4 D4 E4<arp:3,7> F4:2",
		"seq main = (A A)*2",
		"channel 1 => inst lead seq main speed 2",
	}, "\n")
	song, err := dsl.Parse(src, dsl.Options{})
	if err != nil {
		t.Fatalf("dsl.Parse() error = %v", err)
	}
	ism1, err := Resolve(song, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	ism2, err := Resolve(song, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	events1 := ism1.Channels[0].Events
	events2 := ism2.Channels[0].Events
	if len(events1) != len(events2) {
		t.Fatalf("len mismatch: %d vs %d", len(events1), len(events2))
	}
	for i := range events1 {
		n1, ok1 := events1[i].(NoteEvent)
		n2, ok2 := events2[i].(NoteEvent)
		if ok1 != ok2 {
			t.Errorf("events[%d] type mismatch: %T vs %T", i, events1[i], events2[i])
			continue
		}
		if ok1 && (n1.Note != n2.Note || n1.Instrument != n2.Instrument || n1.Duration != n2.Duration) {
			t.Errorf("events[%d] differ: %+v vs %+v", i, n1, n2)
		}
	}
}

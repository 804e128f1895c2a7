package notes

import (
	"reflect"
	"testing"
)

func TestNoteRoundTrip(t *testing.T) {
	for m := 0; m <= 127; m++ {
		name := MIDIToNote(m)
		got, ok := NoteToMIDI(name)
		if !ok {
			t.Fatalf("NoteToMIDI(%q) failed to parse round-trip of MIDI %d", name, m)
		}
		if got != m {
			t.Errorf("round trip mismatch: midi=%d -> %q -> %d", m, name, got)
		}
	}
}

func TestNoteToMIDI(t *testing.T) {
	cases := []struct {
		name string
		want int
		ok   bool
	}{
		{"C4", 60, true},
		{"C#4", 61, true},
		{"Db4", 61, true},
		{"A4", 69, true},
		{"A-1", 9, true}, // octave -1: (-1+1)*12 + 9
		{"G9", 127, true},
		{"H4", 0, false},
		{"C", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := NoteToMIDI(c.name)
		if ok != c.ok {
			t.Errorf("NoteToMIDI(%q) ok=%v, want %v", c.name, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("NoteToMIDI(%q) = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestFrequency(t *testing.T) {
	f := Frequency(69)
	if f < 439.99 || f > 440.01 {
		t.Errorf("Frequency(69) = %f, want ~440", f)
	}
}

func TestExpandPatternBasic(t *testing.T) {
	got := ExpandPattern("C4 D4 E4")
	want := []string{"C4", "D4", "E4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandPatternRepeat(t *testing.T) {
	got := ExpandPattern("C4*3")
	want := []string{"C4", "C4", "C4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandPatternGroupRepeat(t *testing.T) {
	base := ExpandPattern("X")
	got := ExpandPattern("(X)*4")
	if len(got) != 4*len(base) {
		t.Errorf("expected length %d, got %d", 4*len(base), len(got))
	}
}

func TestExpandPatternNestedGroups(t *testing.T) {
	got := ExpandPattern("((A B)*2 C)*2")
	want := []string{"A", "B", "A", "B", "C", "A", "B", "A", "B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandPatternZeroRepeat(t *testing.T) {
	got := ExpandPattern("C4*0 D4")
	want := []string{"D4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandPatternMalformedRepeat(t *testing.T) {
	got := ExpandPattern("C4* D4")
	want := []string{"C4*", "D4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandPatternRest(t *testing.T) {
	got := ExpandPattern(". C4 .")
	want := []string{".", "C4", "."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTranspose(t *testing.T) {
	got := Transpose([]string{"C4", ".", "D4"}, 2, 0)
	want := []string{"D4", ".", "E4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransposeUnknownPassthrough(t *testing.T) {
	got := Transpose([]string{"kick", "C4"}, 12, 0)
	want := []string{"kick", "C5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransposeOctaves(t *testing.T) {
	got := Transpose([]string{"C4"}, 0, -1)
	want := []string{"C3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

package dsl

import "testing"

func TestSplitTopLevelItems(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"A B C", []string{"A", "B", "C"}},
		{"A, B, C", []string{"A", "B", "C"}},
		{"(A B)*2 C", []string{"(A B)*2", "C"}},
		{"(A (B C)*2)*3", []string{"(A (B C)*2)*3"}},
	}
	for _, tt := range tests {
		got := splitTopLevelItems(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitTopLevelItems(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitTopLevelItems(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseSequenceItemsFlat(t *testing.T) {
	items, err := parseSequenceItems("A B*3", 1)
	if err != nil {
		t.Fatalf("parseSequenceItems() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].BaseName != "A" || items[0].Repeat != 1 {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].BaseName != "B" || items[1].Repeat != 3 {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestParseSequenceItemsNestedGroups(t *testing.T) {
	items, err := parseSequenceItems("(A (B C)*2)*3", 1)
	if err != nil {
		t.Fatalf("parseSequenceItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	outer := items[0]
	if outer.Repeat != 3 || len(outer.Group) != 2 {
		t.Fatalf("outer = %+v", outer)
	}
	if outer.Group[0].BaseName != "A" {
		t.Errorf("outer.Group[0] = %+v", outer.Group[0])
	}
	inner := outer.Group[1]
	if inner.Repeat != 2 || len(inner.Group) != 2 {
		t.Fatalf("inner = %+v", inner)
	}
	if inner.Group[0].BaseName != "B" || inner.Group[1].BaseName != "C" {
		t.Errorf("inner.Group = %+v", inner.Group)
	}
}

func TestParseSequenceItemWithTransforms(t *testing.T) {
	items, err := parseSequenceItems("P:oct(-1):inst(bass)", 1)
	if err != nil {
		t.Fatalf("parseSequenceItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	item := items[0]
	if item.BaseName != "P" || len(item.Transforms) != 2 {
		t.Fatalf("item = %+v", item)
	}
	if item.Transforms[0].Kind != "oct" || item.Transforms[0].Args[0] != "-1" {
		t.Errorf("Transforms[0] = %+v", item.Transforms[0])
	}
	if item.Transforms[1].Kind != "inst" || item.Transforms[1].Args[0] != "bass" {
		t.Errorf("Transforms[1] = %+v", item.Transforms[1])
	}
}

func TestParseSequenceItemsUnmatchedParen(t *testing.T) {
	_, err := parseSequenceItems("(A B", 1)
	if err == nil {
		t.Fatal("expected an error for an unmatched '('")
	}
}

package dsl

import "testing"

func TestSplitTopLevelColon(t *testing.T) {
	got := splitTopLevelColon("P:oct(-1):rev")
	want := []string{"P", "oct(-1)", "rev"}
	if len(got) != len(want) {
		t.Fatalf("got = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitTopLevelColonIgnoresNestedColons(t *testing.T) {
	got := splitTopLevelColon("A:inst(bass:extra)")
	want := []string{"A", "inst(bass:extra)"}
	if len(got) != len(want) {
		t.Fatalf("got = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseTransformSeg(t *testing.T) {
	tr := parseTransformSeg("oct(-1)")
	if tr.Kind != "oct" || len(tr.Args) != 1 || tr.Args[0] != "-1" {
		t.Errorf("parseTransformSeg(oct(-1)) = %+v", tr)
	}
	tr = parseTransformSeg("rev")
	if tr.Kind != "rev" || tr.Args != nil {
		t.Errorf("parseTransformSeg(rev) = %+v", tr)
	}
	tr = parseTransformSeg("inst(bass)")
	if tr.Kind != "inst" || tr.Args[0] != "bass" {
		t.Errorf("parseTransformSeg(inst(bass)) = %+v", tr)
	}
}

func TestParseNameWithTransforms(t *testing.T) {
	name, transforms := parseNameWithTransforms("P:oct(-1):rev")
	if name != "P" {
		t.Errorf("name = %q, want %q", name, "P")
	}
	if len(transforms) != 2 || transforms[0].Kind != "oct" || transforms[1].Kind != "rev" {
		t.Errorf("transforms = %+v", transforms)
	}
}

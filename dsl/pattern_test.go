package dsl

import "testing"

func TestSplitAtomTokenPlain(t *testing.T) {
	base, effects, dur, err := splitAtomToken("C4")
	if err != nil {
		t.Fatalf("splitAtomToken() error = %v", err)
	}
	if base != "C4" || len(effects) != 0 || dur != 1 {
		t.Errorf("base=%q effects=%v dur=%d", base, effects, dur)
	}
}

func TestSplitAtomTokenBareDuration(t *testing.T) {
	base, effects, dur, err := splitAtomToken("C4:4")
	if err != nil {
		t.Fatalf("splitAtomToken() error = %v", err)
	}
	if base != "C4" || len(effects) != 0 || dur != 4 {
		t.Errorf("base=%q effects=%v dur=%d", base, effects, dur)
	}
}

func TestSplitAtomTokenSingleEffectNoDuration(t *testing.T) {
	base, effects, dur, err := splitAtomToken("C4<cut:2>")
	if err != nil {
		t.Fatalf("splitAtomToken() error = %v", err)
	}
	if base != "C4" || dur != 1 {
		t.Errorf("base=%q dur=%d", base, dur)
	}
	if len(effects) != 1 || effects[0].Name != "cut" || len(effects[0].Params) != 1 || effects[0].Params[0] != "2" {
		t.Errorf("effects = %+v", effects)
	}
}

func TestSplitAtomTokenMultipleEffectsWithDuration(t *testing.T) {
	base, effects, dur, err := splitAtomToken("C4<arp:3,7><pan:L>:8")
	if err != nil {
		t.Fatalf("splitAtomToken() error = %v", err)
	}
	if base != "C4" || dur != 8 {
		t.Errorf("base=%q dur=%d", base, dur)
	}
	if len(effects) != 2 {
		t.Fatalf("len(effects) = %d, want 2", len(effects))
	}
	if effects[0].Name != "arp" || effects[0].Params[0] != "3" || effects[0].Params[1] != "7" {
		t.Errorf("effects[0] = %+v", effects[0])
	}
	if effects[1].Name != "pan" || effects[1].Params[0] != "L" {
		t.Errorf("effects[1] = %+v", effects[1])
	}
}

func TestSplitAtomTokenBareEffectNoParams(t *testing.T) {
	base, effects, _, err := splitAtomToken("C4<cut>")
	if err != nil {
		t.Fatalf("splitAtomToken() error = %v", err)
	}
	if base != "C4" || len(effects) != 1 || effects[0].Name != "cut" || effects[0].Params != nil {
		t.Errorf("base=%q effects=%+v", base, effects)
	}
}

func TestSplitAtomTokenMalformed(t *testing.T) {
	tests := []string{"C4<cut", "C4<cut:2>:", "C4<cut:2>:x"}
	for _, raw := range tests {
		if _, _, _, err := splitAtomToken(raw); err == nil {
			t.Errorf("splitAtomToken(%q) expected an error", raw)
		}
	}
}

func TestParsePatternBodyAtomKinds(t *testing.T) {
	atoms, err := parsePatternBody("C4 . _ inst(bass) inst(lead,2) hit(kick,3) foo", 1)
	if err != nil {
		t.Fatalf("parsePatternBody() error = %v", err)
	}
	if len(atoms) != 7 {
		t.Fatalf("len(atoms) = %d, want 7", len(atoms))
	}
	if _, ok := atoms[0].(NoteAtom); !ok {
		t.Errorf("atoms[0] type = %T, want NoteAtom", atoms[0])
	}
	if _, ok := atoms[1].(RestAtom); !ok {
		t.Errorf("atoms[1] type = %T, want RestAtom", atoms[1])
	}
	if _, ok := atoms[2].(SustainAtom); !ok {
		t.Errorf("atoms[2] type = %T, want SustainAtom", atoms[2])
	}
	inlineInst, ok := atoms[3].(InlineInstAtom)
	if !ok || inlineInst.Name != "bass" {
		t.Errorf("atoms[3] = %#v", atoms[3])
	}
	tempInst, ok := atoms[4].(TempInstAtom)
	if !ok || tempInst.Name != "lead" || tempInst.Count != 2 {
		t.Errorf("atoms[4] = %#v", atoms[4])
	}
	hit, ok := atoms[5].(HitAtom)
	if !ok || hit.Name != "kick" || hit.Count != 3 {
		t.Errorf("atoms[5] = %#v", atoms[5])
	}
	tok, ok := atoms[6].(TokenAtom)
	if !ok || tok.Raw != "foo" {
		t.Errorf("atoms[6] = %#v", atoms[6])
	}
}

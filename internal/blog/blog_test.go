package blog

import (
	"context"
	"testing"
)

func TestRecordingCapturesEachLevel(t *testing.T) {
	var r Recording
	r.Debug("d", "k", 1)
	r.Info("i")
	r.Warn("w")
	r.Error("e")

	if len(r.Entries) != 4 {
		t.Fatalf("len(Entries) = %d, want 4", len(r.Entries))
	}
	want := []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i, e := range r.Entries {
		if e.Level != want[i] {
			t.Errorf("Entries[%d].Level = %v, want %v", i, e.Level, want[i])
		}
	}
	if r.Entries[0].Msg != "d" || len(r.Entries[0].KV) != 2 {
		t.Errorf("Entries[0] = %+v, want msg=d with 2 kv items", r.Entries[0])
	}
}

func TestFromContextDefaultsToDiscard(t *testing.T) {
	l := FromContext(context.Background())
	if l != Discard {
		t.Error("FromContext() on a bare context should return Discard")
	}
}

func TestWithContextRoundTrips(t *testing.T) {
	var r Recording
	ctx := WithContext(context.Background(), &r)
	got := FromContext(ctx)
	if got != Logger(&r) {
		t.Error("FromContext() did not return the logger installed by WithContext")
	}
}

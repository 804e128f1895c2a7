package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSongParsesAndResolves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.bbx")
	src := "chip gameboy\nbpm 120\ninst lead type=pulse1 duty=50 env=12,down\npat A = C4 D4\nchannel 1 => inst lead pat A\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := loadSong(path)
	if err != nil {
		t.Fatalf("loadSong() error = %v", err)
	}
	if res.ISM.BPM != 120 {
		t.Errorf("ISM.BPM = %d, want 120", res.ISM.BPM)
	}
	if len(res.ISM.Channels) != 1 {
		t.Fatalf("len(Channels) = %d, want 1", len(res.ISM.Channels))
	}
}

func TestLoadSongReturnsErrorForMissingFile(t *testing.T) {
	_, err := loadSong(filepath.Join(t.TempDir(), "missing.bbx"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/importer"
	"github.com/kadraman/beatbax/internal/diag"
	"github.com/kadraman/beatbax/resolve"
)

// loadResult bundles a fully resolved song with every warning collected
// along the way, so verify can report them and play/export can ignore
// them past a log line.
type loadResult struct {
	Song     *dsl.Song
	ISM      *resolve.ISM
	Warnings []diag.ResolveWarning
}

// loadSong reads path, parses it, resolves its imports, and expands it
// into an ISM. Parse/import/resolve errors are returned as-is; they are
// already the typed errors internal/diag defines.
func loadSong(path string) (*loadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var warnings []diag.ResolveWarning
	onWarn := func(w diag.ResolveWarning) { warnings = append(warnings, w) }

	song, err := dsl.Parse(string(data), dsl.Options{OnWarn: onWarn})
	if err != nil {
		return nil, err
	}

	song, err = importer.Resolve(song, importer.Options{
		BaseFilePath: path,
		OnWarn:       onWarn,
		Log:          appLogger,
	})
	if err != nil {
		return nil, err
	}

	ism, err := resolve.Resolve(song, resolve.Options{OnWarn: onWarn})
	if err != nil {
		return nil, err
	}

	return &loadResult{Song: song, ISM: ism, Warnings: warnings}, nil
}

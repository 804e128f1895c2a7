package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kadraman/beatbax/internal/export"
	"github.com/kadraman/beatbax/playback"
)

// runExport writes one of the four export formats for a song.
func runExport(args []string) error {
	fs := commonFlagSet("export")
	out := fs.String("o", "", "output file path (defaults to <input>.<format>)")
	hz := fs.Int("hz", 48000, "wav: output sample rate")
	fs.Parse(args)
	// Flags may also follow the positional arguments, as usage shows.
	var pos []string
	for fs.NArg() > 0 {
		pos = append(pos, fs.Arg(0))
		fs.Parse(fs.Args()[1:])
	}

	if len(pos) != 2 {
		return fmt.Errorf("export requires <json|midi|uge|wav> and a file argument")
	}
	format := pos[0]
	path := pos[1]

	res, err := loadSong(path)
	if err != nil {
		return err
	}

	outPath := *out
	if outPath == "" {
		outPath = strings.TrimSuffix(path, ".bbx") + "." + format
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "json":
		err = export.WriteJSON(f, res.ISM)
	case "midi":
		err = export.WriteMIDI(f, res.ISM)
	case "uge":
		err = export.WriteUGE(f, res.ISM, res.Song.Insts)
	case "wav":
		_, err = playback.RenderOffline(res.ISM, *hz, 1024, f)
	default:
		return fmt.Errorf("unknown export format %q, want json, midi, uge, or wav", format)
	}
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", outPath)
	return nil
}

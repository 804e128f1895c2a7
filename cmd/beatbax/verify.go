package main

import (
	"fmt"
	"os"
)

// runVerify parses, resolves imports, and resolves the ISM for a song,
// printing every diagnostic to stderr. It exits with status 2 when the
// song fails to load; warnings alone leave the exit status at 0
// (teacher precedent: moddump's read-validate-report flow over a binary
// song, generalized to a text one).
func runVerify(args []string) error {
	fs := commonFlagSet("verify")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("verify requires exactly one file argument")
	}

	res, err := loadSong(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
	}
	fmt.Printf("ok: %d channel(s), bpm=%d, chip=%s\n", len(res.ISM.Channels), res.ISM.BPM, res.ISM.Chip)
	return nil
}

// beatbax is the BeatBax CLI: play, verify, and export a BeatBax DSL
// song file.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/kadraman/beatbax/internal/blog"
)

// appLogger is the CLI's production logger, shared by load.go and play.go.
// It writes to stderr so it never interleaves with play's live stdout view.
var appLogger = blog.New(os.Stderr, slog.LevelWarn)

func main() {
	log.SetFlags(0)
	log.SetPrefix("beatbax: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "play":
		err = runPlay(args)
	case "verify":
		err = runVerify(args)
	case "export":
		err = runExport(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "beatbax: unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  beatbax play <file.bbx> [-hz 48000]
  beatbax verify <file.bbx>
  beatbax export <json|midi|uge|wav> <file.bbx> [-o <out>] [-hz 48000]`)
}

func commonFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/frostylucas/fx-events/internal/codegen"
)

//go:generate go install

const usage = `USAGE

	fxevents generate [packages]	//generate pack/unpack methods
`

func main() {
	flag.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, usage)
	}
	flag.Parse()

	if flag.NArg() == 0 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "generate":
		generateFlags := flag.NewFlagSet("generate", flag.ExitOnError)
		generateFlags.Usage = func() {
			_, _ = fmt.Fprintln(os.Stderr, codegen.Usage)
		}
		_ = generateFlags.Parse(flag.Args()[1:])

		opts, err := codegen.LoadOptions(".")
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		diags, err := codegen.Generate(".", generateFlags.Args(), opts)
		for _, d := range diags {
			_, _ = fmt.Fprintln(os.Stderr, d)
		}
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if len(diags) > 0 {
			os.Exit(1)
		}
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

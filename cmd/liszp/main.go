// Command liszp runs the Liszp interpreter: with a .lzp file argument it
// evaluates the file, without one it launches a REPL. The standard library
// is loaded into the evaluator first in both modes.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/thsfranca/liszp/internal/interpreter/eval"
	"github.com/thsfranca/liszp/internal/interpreter/lisperr"
	"github.com/thsfranca/liszp/internal/interpreter/repl"
)

func main() {
	app := &cli.App{
		Name:      "liszp",
		Usage:     "a trampolined continuation-passing-style Lisp interpreter",
		UsageText: "liszp [options] [file.lzp]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "vals",
				Usage: "print the value of each top-level expression after file evaluation",
			},
			&cli.BoolFlag{
				Name:  "ns",
				Usage: "print the global namespace after file evaluation",
			},
			&cli.BoolFlag{
				Name:  "full-trace",
				Usage: "show the whole stack trace on errors instead of the last frames",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log each pipeline stage to stderr",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, lisperr.AsError(err).Display(false))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := zap.NewNop()
	if c.Bool("debug") {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	evaluator := eval.New(eval.Config{Logger: logger})

	if c.Args().Len() == 0 {
		return runRepl(c, evaluator)
	}

	filename := c.Args().First()
	if !strings.HasSuffix(filename, ".lzp") {
		return fmt.Errorf("expected a .lzp source file, got '%s'", filename)
	}
	return runFile(c, evaluator, filename)
}

func runFile(c *cli.Context, evaluator *eval.Evaluator, filename string) error {
	if err := evaluator.LoadStdlib(); err != nil {
		return err
	}

	results, err := evaluator.EvalFile(filename)
	if err != nil {
		fmt.Fprintln(os.Stderr, lisperr.AsError(err).Display(c.Bool("full-trace")))
		return cli.Exit("", 1)
	}

	if c.Bool("vals") {
		fmt.Println("\n:: values ::")
		for i, result := range results {
			fmt.Printf("expr %d evaluates to %s;\n", i+1, result)
		}
	}

	if c.Bool("ns") {
		fmt.Println("\n:: global namespace ::")
		globals := evaluator.Globals()
		keys := maps.Keys(globals)
		slices.Sort(keys)
		for _, key := range keys {
			fmt.Printf("value '%s' = %s\n", key, globals[key])
		}
	}
	return nil
}

func runRepl(c *cli.Context, evaluator *eval.Evaluator) error {
	if err := evaluator.LoadStdlib(); err != nil {
		// The REPL stays usable without a stdlib.
		fmt.Fprintln(os.Stderr, lisperr.AsError(err).Display(false))
	}

	return repl.New(evaluator, os.Stdin, os.Stdout, os.Stderr, c.Bool("full-trace")).Run()
}

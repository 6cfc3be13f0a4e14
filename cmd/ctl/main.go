package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/antonromanov1/ctl/compiler"
	"github.com/antonromanov1/ctl/compiler/parse"
)

func main() {
	parseCmd := &cli.Command{
		Name:   "parse",
		Action: parseAct,
		Args:   cli.Args{},
	}

	flatCmd := &cli.Command{
		Name:   "flat",
		Action: compileAct(compiler.Flat),
		Args:   cli.Args{},
	}

	graphCmd := &cli.Command{
		Name:   "graph",
		Action: compileAct(compiler.Graph),
		Args:   cli.Args{},
	}

	app := &cli.Command{
		Name:        "ctl",
		Description: "ctl lowers a small i64-only curly-brace language to its flat or graph IR",
		Commands: []*cli.Command{
			parseCmd,
			flatCmd,
			graphCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func parseAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		x, err := parse.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		fmt.Printf("ast: %+v\n", x)
	}

	return nil
}

// compileAct lowers each named file to form and prints the result. With no
// file arguments, it reads one compilation unit from standard input.
func compileAct(form compiler.Form) func(*cli.Command) error {
	return func(c *cli.Command) (err error) {
		ctx := context.Background()
		ctx = tlog.ContextWithSpan(ctx, tlog.Root())

		if len(c.Args) == 0 {
			text, err := io.ReadAll(os.Stdin)
			if err != nil {
				return errors.Wrap(err, "read stdin")
			}

			out, err := compiler.Compile(ctx, "<stdin>", text, form)
			if err != nil {
				return errors.Wrap(err, "compile <stdin>")
			}

			fmt.Printf("%s", out)

			return nil
		}

		for _, a := range c.Args {
			out, err := compiler.CompileFile(ctx, a, form)
			if err != nil {
				return errors.Wrap(err, "compile %v", a)
			}

			fmt.Printf("%s", out)
		}

		return nil
	}
}

// Package compiler drives the pipeline: parse, analyze, lower every
// function to one of the two IR forms, and render the result as text.
package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/antonromanov1/ctl/compiler/analyze"
	"github.com/antonromanov1/ctl/compiler/ast"
	"github.com/antonromanov1/ctl/compiler/df"
	"github.com/antonromanov1/ctl/compiler/flatir"
	"github.com/antonromanov1/ctl/compiler/format"
	"github.com/antonromanov1/ctl/compiler/ir"
	"github.com/antonromanov1/ctl/compiler/parse"
)

// Form selects which IR a Compile call lowers to.
type Form int

const (
	Flat Form = iota
	Graph
)

func CompileFile(ctx context.Context, name string, form Form) (out []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, form)
}

// Compile parses and analyzes text, then lowers every function it defines
// to the requested IR form and renders each as text, separated by a blank
// line.
func Compile(ctx context.Context, name string, text []byte, form Form) (out []byte, err error) {
	u, err := parse.Parse(ctx, name, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	if err = analyze.Analyze(ctx, name, text, u); err != nil {
		return nil, errors.Wrap(err, "analyze")
	}

	for i, f := range u.Funcs {
		if i != 0 {
			out = append(out, '\n')
		}

		out, err = lowerAndFormat(ctx, out, f, form)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return out, nil
}

func lowerAndFormat(ctx context.Context, out []byte, f *ast.Func, form Form) ([]byte, error) {
	switch form {
	case Flat:
		fn, err := flatir.Lower(ctx, f)
		if err != nil {
			return nil, errors.Wrap(err, "lower")
		}

		return format.Format(ctx, out, fn)

	case Graph:
		fn, err := ir.Lower(ctx, f)
		if err != nil {
			return nil, errors.Wrap(err, "lower")
		}

		if dead := df.Unreachable(fn); len(dead) > 0 {
			tlog.SpanFromContext(ctx).Printw("unreachable blocks", "func", f.Name, "blocks", dead)
		}

		return format.Format(ctx, out, fn)

	default:
		return nil, errors.New("unknown IR form: %v", form)
	}
}

package lang

import (
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprEnv is the environment an expr program sees: the filtered value and
// any extra arguments.
type exprEnv struct {
	Value any   `expr:"value"`
	Args  []any `expr:"args"`
}

// compileExpr compiles source once for use as a filter or test.
func compileExpr(name, source string, opts ...expr.Option) (*vm.Program, error) {
	program, err := expr.Compile(source, append([]expr.Option{expr.Env(exprEnv{})}, opts...)...)
	if err != nil {
		return nil, ErrExprCompile.Wrap(err).With(
			slog.String("name", name),
			slog.String("source", source),
		)
	}

	return program, nil
}

func runExpr(program *vm.Program, name, source string) FilterFunc {
	return func(_ *Context, value any, args ...any) (any, error) {
		out, err := vm.Run(program, exprEnv{Value: value, Args: args})
		if err != nil {
			return nil, ErrExprEvaluate.Wrap(err).With(
				slog.String("name", name),
				slog.String("source", source),
			)
		}

		return out, nil
	}
}

// WithExprFilter registers a filter written as an expr-lang expression
// over "value" and "args":
//
//	WithExprFilter("double", "value * 2")
//	WithExprFilter("pad", `repeat(" ", args[0]) + value`)
//
// A compile failure makes NewEngine return the error.
func WithExprFilter(name, source string) Option {
	return func(e *Engine) {
		program, err := compileExpr(name, source)
		if err != nil {
			e.fail(err)

			return
		}

		e.filters[name] = runExpr(program, name, source)
	}
}

// WithExprTest registers a test written as an expr-lang expression that
// yields a boolean:
//
//	WithExprTest("positive", "value > 0")
func WithExprTest(name, source string) Option {
	return func(e *Engine) {
		program, err := compileExpr(name, source, expr.AsBool())
		if err != nil {
			e.fail(err)

			return
		}

		e.tests[name] = runExpr(program, name, source)
	}
}

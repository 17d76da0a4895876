package match

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
})

// Expr compiles a CEL expression into a Satisfies predicate. The attribute
// is bound to the variable "value", e.g. `value > 3 && value < 10` or
// `value.startsWith("mail")`. The expression must yield a bool; evaluation
// errors count as a non-match.
func Expr(expr string) (Predicate, error) {
	env, err := celEnv()
	if err != nil {
		return Predicate{}, fmt.Errorf("cel environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return Predicate{}, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return Predicate{}, fmt.Errorf("expression %q yields %s, want bool", expr, out)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return Predicate{}, fmt.Errorf("program %q: %w", expr, err)
	}

	return Predicate{
		kind: KindSatisfies,
		desc: expr,
		fn: func(actual any) bool {
			out, _, err := prg.Eval(map[string]any{"value": actual})
			if err != nil {
				return false
			}
			b, ok := out.Value().(bool)
			return ok && b
		},
	}, nil
}

// MustExpr is like Expr but panics on a compile error
func MustExpr(expr string) Predicate {
	p, err := Expr(expr)
	if err != nil {
		panic(err)
	}
	return p
}

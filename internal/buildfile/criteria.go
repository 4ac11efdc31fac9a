package buildfile

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/aristath/kiln/internal/host"
)

// criterionEnv builds the variables and functions visible to a criterion.
func criterionEnv(target string, args map[string]string) map[string]any {
	return map[string]any{
		"target": target,
		"args":   args,
		"os":     runtime.GOOS,
		"env":    os.Getenv,
		"exists": func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

func compileCriterion(src string) (*vm.Program, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("criterion has no condition")
	}
	program, err := expr.Compile(src, expr.Env(criterionEnv("", map[string]string{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile criterion %q: %w", src, err)
	}
	return program, nil
}

func newCriterion(spec CriterionSpec) (host.Criterion, error) {
	program, err := compileCriterion(spec.When)
	if err != nil {
		return host.Criterion{}, err
	}
	msg := spec.Message
	if msg == "" {
		msg = fmt.Sprintf("criterion %q not met", spec.When)
	}
	return host.Criterion{
		Predicate: func(ctx *host.Context) (bool, error) {
			out, err := expr.Run(program, criterionEnv(ctx.Target(), ctx.Arguments()))
			if err != nil {
				return false, fmt.Errorf("eval criterion %q: %w", spec.When, err)
			}
			ok, isBool := out.(bool)
			if !isBool {
				return false, fmt.Errorf("criterion %q did not return bool (got %T)", spec.When, out)
			}
			return ok, nil
		},
		Message: msg,
	}, nil
}

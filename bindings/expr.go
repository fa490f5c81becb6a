package bindings

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/shrek82/projectdb/hooks"
)

// addOverride compiles o and appends it to its hook. String hooks see
// `value`; the SQL hooks also see `args`; the bool hooks see `value` plus
// `dir` or `path` and `basenames`.
func (b *Bindings) addOverride(o Override) error {
	if !known(o.Hook) {
		return ErrUnknownHook
	}

	textFilters := map[string]*hooks.Filter[string, hooks.None]{
		HookInstallNumber:       b.InstallNumber,
		HookProjectNumber:       b.ProjectNumber,
		HookProjectDescription:  b.ProjectDescription,
		HookInstallDescription:  b.InstallDescription,
		HookRelationName:        b.RelationName,
		HookSQLWhereGetProjects: b.SQLWhereGetProjects,
	}
	if f, ok := textFilters[o.Hook]; ok {
		prog, err := compile(o.Expr, map[string]any{"value": ""}, expr.AsKind(reflect.String))
		if err != nil {
			return err
		}
		f.Add(func(v string, _ hooks.None) (string, error) {
			return runString(prog, map[string]any{"value": v})
		})
		return nil
	}

	switch o.Hook {
	case HookSQLGetProjects:
		prog, err := compile(o.Expr, map[string]any{"value": "", "args": GetProjectsArgs{}}, expr.AsKind(reflect.String))
		if err != nil {
			return err
		}
		b.SQLGetProjects.Add(func(v string, args GetProjectsArgs) (string, error) {
			return runString(prog, map[string]any{"value": v, "args": args})
		})

	case HookSQLGetPlanning:
		prog, err := compile(o.Expr, map[string]any{"value": "", "args": GetPlanningArgs{}}, expr.AsKind(reflect.String))
		if err != nil {
			return err
		}
		b.SQLGetPlanning.Add(func(v string, args GetPlanningArgs) (string, error) {
			return runString(prog, map[string]any{"value": v, "args": args})
		})

	case HookIsValidProjectLocation:
		prog, err := compile(o.Expr, map[string]any{"value": false, "dir": ""}, expr.AsBool())
		if err != nil {
			return err
		}
		b.IsValidProjectLocation.Add(func(v bool, dir string) (bool, error) {
			return runBool(prog, map[string]any{"value": v, "dir": dir})
		})

	case HookProjectPathIsMatch:
		prog, err := compile(o.Expr, map[string]any{"value": false, "path": "", "basenames": []string{}}, expr.AsBool())
		if err != nil {
			return err
		}
		b.ProjectPathIsMatch.Add(func(v bool, m PathMatch) (bool, error) {
			return runBool(prog, map[string]any{"value": v, "path": m.Path, "basenames": m.Basenames})
		})

	default:
		return fmt.Errorf("hook %s does not take expressions", o.Hook)
	}
	return nil
}

func known(hook string) bool {
	for _, n := range Names {
		if n == hook {
			return true
		}
	}
	return false
}

func compile(code string, env map[string]any, opts ...expr.Option) (*vm.Program, error) {
	prog, err := expr.Compile(code, append([]expr.Option{expr.Env(env)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}
	return prog, nil
}

func runString(prog *vm.Program, env map[string]any) (string, error) {
	out, err := expr.Run(prog, env)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate expression: %w", err)
	}
	s, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("expression returned %T, want string", out)
	}
	return s, nil
}

func runBool(prog *vm.Program, env map[string]any) (bool, error) {
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}
	v, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out)
	}
	return v, nil
}

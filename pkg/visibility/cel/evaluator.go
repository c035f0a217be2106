// Package cel evaluates visibility rules written in the Common Expression
// Language. Rules see two map variables, formValues and externalContext:
//
//	formValues.contact.method == "email" && has(externalContext.user)
//
// Compilation failures wrap visibility.ErrInvalidRule. Evaluation failures
// (for example a missing map key) hide the node instead of failing the pass,
// because partially filled forms are the normal case.
package cel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/goliatone/go-formschema/pkg/visibility"
)

// Variable names exposed to rules.
const (
	VarFormValues      = "formValues"
	VarExternalContext = "externalContext"
)

// Evaluator compiles rules once per distinct source and caches the program.
type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

var _ visibility.Evaluator = (*Evaluator)(nil)

// New builds an evaluator. Extra environment options (custom functions,
// macros) are appended to the default declarations.
func New(opts ...cel.EnvOption) (*Evaluator, error) {
	base := []cel.EnvOption{
		cel.Variable(VarFormValues, cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable(VarExternalContext, cel.MapType(cel.StringType, cel.DynType)),
	}
	env, err := cel.NewEnv(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("visibility/cel: build environment: %w", err)
	}
	return &Evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

// MustNew is New that panics on error.
func MustNew(opts ...cel.EnvOption) *Evaluator {
	ev, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return ev
}

// Eval implements visibility.Evaluator.
func (e *Evaluator) Eval(fieldPath, rule string, ctx visibility.Context) (bool, error) {
	source := strings.TrimSpace(rule)
	if source == "" {
		return true, nil
	}
	prg, err := e.program(source)
	if err != nil {
		return false, fmt.Errorf("%w: %q at %q: %v", visibility.ErrInvalidRule, rule, fieldPath, err)
	}

	out, _, err := prg.Eval(map[string]any{
		VarFormValues:      nonNil(ctx.Values),
		VarExternalContext: nonNil(ctx.Extras),
	})
	if err != nil {
		return false, nil
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q at %q evaluated to %T, want bool", visibility.ErrInvalidRule, rule, fieldPath, out.Value())
	}
	return result, nil
}

// Validate compiles rule without evaluating it.
func (e *Evaluator) Validate(rule string) error {
	_, err := e.program(strings.TrimSpace(rule))
	return err
}

func (e *Evaluator) program(source string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[source]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(source)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[source] = prg
	e.mu.Unlock()
	return prg, nil
}

func nonNil(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return values
}

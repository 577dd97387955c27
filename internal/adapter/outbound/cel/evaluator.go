// Package cel provides a CEL-based evaluator for reply rule conditions.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/webcomputing/assistant-alexa/internal/domain/reply"
)

// Reply conditions are one-line checks on intent, entities and session
// state. The limits reject anything that looks like a program rather than
// a condition.
const (
	// maxConditionLength fits a condition on one line of the reply file.
	maxConditionLength = 512
	// maxConditionDepth bounds bracket nesting in a condition.
	maxConditionDepth = 16
	// conditionCostLimit allows a handful of entity lookups and string
	// comparisons, plus a small comprehension over the entity map.
	conditionCostLimit = 10_000
	// conditionTimeout bounds one condition. Match may evaluate every rule
	// of an intent before Alexa's response window closes.
	conditionTimeout = 50 * time.Millisecond
	// interruptEvery is the comprehension iteration count between
	// cancellation checks.
	interruptEvery = 32
)

// ErrNotBool reports a condition that does not yield a boolean.
var ErrNotBool = errors.New("reply condition must yield a bool")

// Evaluator compiles and evaluates reply conditions.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates an Evaluator over the reply environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewReplyEnvironment()
	if err != nil {
		return nil, fmt.Errorf("reply environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile type-checks cond and returns its program. A rule without a
// condition always answers, so "" compiles to true.
func (e *Evaluator) Compile(cond string) (cel.Program, error) {
	if cond == "" {
		cond = "true"
	}
	ast, issues := e.env.Compile(cond)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile condition: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w, got %s", ErrNotBool, out)
	}
	return e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(conditionCostLimit),
		cel.InterruptCheckFrequency(interruptEvery),
	)
}

// conditionDepth returns the deepest bracket nesting in cond.
func conditionDepth(cond string) int {
	var depth, deepest int
	for _, ch := range cond {
		switch ch {
		case '(', '[', '{':
			depth++
			deepest = max(deepest, depth)
		case ')', ']', '}':
			depth--
		}
	}
	return deepest
}

// Check reports whether cond is usable as a reply condition: non-empty,
// within the size limits and type-correct in the reply environment.
func (e *Evaluator) Check(cond string) error {
	switch {
	case cond == "":
		return errors.New("condition is empty")
	case len(cond) > maxConditionLength:
		return fmt.Errorf("condition too long: %d characters (max %d)", len(cond), maxConditionLength)
	}
	if d := conditionDepth(cond); d > maxConditionDepth {
		return fmt.Errorf("condition nested too deep: %d levels (max %d)", d, maxConditionDepth)
	}
	if _, err := e.Compile(cond); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	return nil
}

// Evaluate runs prg against the request's evaluation context. It gives up
// after conditionTimeout or when ctx ends.
func (e *Evaluator) Evaluate(ctx context.Context, prg cel.Program, evalCtx reply.EvaluationContext) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, conditionTimeout)
	defer cancel()

	out, _, err := prg.ContextEval(ctx, BuildActivation(evalCtx))
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w, got %T", ErrNotBool, out.Value())
	}
	return matched, nil
}

package inherit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-inherit/schema"
)

// Stages at which a default expression can fail.
const (
	StageCompile  = "compile"
	StageEvaluate = "evaluate"
)

// EvaluationError reports a default expression that an evaluator could not
// compile or run. It matches schema.ErrInvalidDefault under errors.Is.
type EvaluationError struct {
	Engine string
	Stage  string
	Record string
	Field  string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("inherit: ")
	if target := e.Target(); target != "" {
		fmt.Fprintf(&b, "default for %s: ", target)
	}
	fmt.Fprintf(&b, "%s %s failed", e.Engine, e.Stage)
	if e.Expr != "" {
		fmt.Fprintf(&b, " for %q", e.Expr)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports evaluation failures as invalid defaults.
func (e *EvaluationError) Is(target error) bool {
	return target == schema.ErrInvalidDefault
}

// Target names the field whose default failed, as Record.Field when both are
// known.
func (e *EvaluationError) Target() string {
	switch {
	case e.Record != "" && e.Field != "":
		return e.Record + "." + e.Field
	default:
		return e.Field
	}
}

// evaluatorError wraps failures that are not tied to an expression, such as
// a missing program.
func evaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "inherit:") {
		return err
	}
	return fmt.Errorf("inherit: %s evaluator: %w", engine, err)
}

func compileError(engine, expr string, err error) error {
	return stageError(StageCompile, engine, expr, ExprContext{}, err)
}

func evaluateError(engine, expr string, ctx ExprContext, err error) error {
	return stageError(StageEvaluate, engine, expr, ctx, err)
}

// stageError builds an EvaluationError, or fills the blanks of one already
// present in err's chain.
func stageError(stage, engine, expr string, ctx ExprContext, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{
			Engine: engine,
			Stage:  stage,
			Record: ctx.Record,
			Field:  ctx.Field,
			Expr:   expr,
			Err:    err,
		}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Stage == "" {
		evalErr.Stage = stage
	}
	if evalErr.Record == "" && evalErr.Field == "" {
		evalErr.Record = ctx.Record
		evalErr.Field = ctx.Field
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	return evalErr
}

var (
	errEmptyExpression = errors.New("expression must not be empty")
	errEmptyProgram    = errors.New("compiled expression missing program")
)

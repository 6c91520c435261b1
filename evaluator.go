package inherit

import "time"

// ExprContext is what a default expression can see. Record and Field name
// the field being defaulted; Args come from WithExprArgs and are also bound
// as top-level variables when their names do not collide with the built-in
// ones (now, args, metadata, record, field, call).
type ExprContext struct {
	Record   string
	Field    string
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

// withDefaults fills in the clock and empty maps so every engine binds the
// same variables.
func (ctx ExprContext) withDefaults() ExprContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx ExprContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

func (ctx ExprContext) fieldLabel() string {
	switch {
	case ctx.Record != "" && ctx.Field != "":
		return ctx.Record + "." + ctx.Field
	case ctx.Field != "":
		return ctx.Field
	default:
		return "unknown"
	}
}

// Evaluator runs default expressions. Derive calls Compile once per default
// to reject bad expressions up front, then Evaluate once to produce the
// value.
type Evaluator interface {
	Evaluate(ctx ExprContext, expr string) (any, error)
	Compile(expr string) (CompiledExpr, error)
}

// CompiledExpr is a checked expression that can be evaluated repeatedly.
type CompiledExpr interface {
	Evaluate(ctx ExprContext) (any, error)
}

// ProgramCache stores compiled programs keyed by engine and expression text.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	case *jsEvaluator:
		return "js"
	default:
		return "custom"
	}
}

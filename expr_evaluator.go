package inherit

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache shares compiled expr programs through cache.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry compiles every registry helper in as an expr
// function, plus call(name, ...args).
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

// ExprWithOptions appends raw expr compile options, for example
// exprlang.Operator overloads. Programs built with extra options are not
// shared through the cache.
func ExprWithOptions(opts ...exprlang.Option) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.extra = append(e.extra, opts...)
	}
}

// exprEvaluator is the default Evaluator used by Derive.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	extra    []exprlang.Option
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
// Undefined identifiers evaluate to nil, which Derive turns into Unset.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx ExprContext, expression string) (any, error) {
	compiled, err := e.Compile(expression)
	if err != nil {
		return nil, stageError(StageCompile, "expr", expression, ctx, err)
	}
	return compiled.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string) (CompiledExpr, error) {
	if expression == "" {
		return nil, evaluatorError("expr", errEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledExpr{evaluator: e, program: program, expression: expression}, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprvm.Program, error) {
	key := "expr:" + expression
	cacheable := e.cache != nil && len(e.extra) == 0
	if cacheable {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, func(arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}))
	}
	options = append(options, e.extra...)
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, compileError("expr", expression, err)
	}
	if cacheable {
		e.cache.Set(key, program)
	}
	return program, nil
}

// environment binds the context variables; Args entries are also exposed
// at top level unless they collide with a built-in name.
func (e *exprEvaluator) environment(ctx ExprContext) map[string]any {
	env := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"record":   ctx.Record,
		"field":    ctx.Field,
	}
	for key, value := range ctx.Args {
		if _, reserved := env[key]; !reserved {
			env[key] = value
		}
	}
	if e.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
	}
	return env
}

type exprCompiledExpr struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprCompiledExpr) Evaluate(ctx ExprContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, evaluatorError("expr", errEmptyProgram)
	}
	result, err := exprlang.Run(r.program, r.evaluator.environment(ctx.withDefaults()))
	if err != nil {
		return nil, evaluateError("expr", r.expression, ctx, err)
	}
	return result, nil
}

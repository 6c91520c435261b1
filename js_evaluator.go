package inherit

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// ErrEvaluationTimeout is reported when a JS default runs past the limit
// set with JSWithTimeout.
var ErrEvaluationTimeout = errors.New("inherit: default expression timed out")

// JSEvaluatorOption configures the JS evaluator.
type JSEvaluatorOption func(*jsEvaluator)

// JSWithProgramCache shares compiled goja programs through cache.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(e *jsEvaluator) {
		e.cache = cache
	}
}

// JSWithFunctionRegistry binds every registry helper as a global function,
// plus call(name, ...args).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(e *jsEvaluator) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

// JSWithTimeout interrupts a default expression that runs longer than d.
// Zero disables the limit.
func JSWithTimeout(d time.Duration) JSEvaluatorOption {
	return func(e *jsEvaluator) {
		e.timeout = d
	}
}

// jsEvaluator runs default expressions in a fresh goja runtime per call.
type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	e := &jsEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *jsEvaluator) Evaluate(ctx ExprContext, expression string) (any, error) {
	compiled, err := e.Compile(expression)
	if err != nil {
		return nil, stageError(StageCompile, "js", expression, ctx, err)
	}
	return compiled.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string) (CompiledExpr, error) {
	if expression == "" {
		return nil, evaluatorError("js", errEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &jsCompiledExpr{evaluator: e, expression: expression, program: program}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	key := "js:" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	// Wrapping in a function body lets a default be a single expression
	// while still rejecting statements.
	program, err := goja.Compile("default", fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	if err != nil {
		return nil, compileError("js", expression, err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx ExprContext, program *goja.Program) (any, error) {
	vm := goja.New()
	if err := e.bind(vm, ctx); err != nil {
		return nil, err
	}
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt(ErrEvaluationTimeout)
		})
		defer timer.Stop()
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok {
				return nil, cause
			}
		}
		return nil, err
	}
	return value.Export(), nil
}

func (e *jsEvaluator) bind(vm *goja.Runtime, ctx ExprContext) error {
	globals := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"record":   ctx.Record,
		"field":    ctx.Field,
	}
	for key, value := range ctx.Args {
		if _, reserved := globals[key]; !reserved {
			globals[key] = value
		}
	}
	if e.registry != nil {
		globals["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
		for _, name := range e.registry.Names() {
			globals[name] = func(arguments ...any) (any, error) {
				return e.registry.Call(name, arguments...)
			}
		}
	}
	for key, value := range globals {
		if err := vm.Set(key, value); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

type jsCompiledExpr struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiledExpr) Evaluate(ctx ExprContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, evaluatorError("js", errEmptyProgram)
	}
	value, err := r.evaluator.run(ctx.withDefaults(), r.program)
	if err != nil {
		return nil, evaluateError("js", r.expression, ctx, err)
	}
	return value, nil
}

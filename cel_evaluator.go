package inherit

import (
	"fmt"
	"go/token"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx ExprContext, expression string) (any, error) {
	if expression == "" {
		return nil, evaluatorError("cel", errEmptyExpression)
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression, argNames(ctx.Args))
	if err != nil {
		return nil, stageError(StageCompile, "cel", expression, ctx, err)
	}
	return e.run(ctx, expression, program)
}

// Compile checks the expression syntax. Type checking waits for Evaluate
// because the declared variables depend on the Args of each context.
func (e *celEvaluator) Compile(expression string) (CompiledExpr, error) {
	if expression == "" {
		return nil, evaluatorError("cel", errEmptyExpression)
	}
	env, err := e.buildEnv(nil)
	if err != nil {
		return nil, evaluatorError("cel", err)
	}
	if _, issues := env.Parse(expression); issues != nil && issues.Err() != nil {
		return nil, compileError("cel", expression, issues.Err())
	}
	return &celCompiledExpr{
		evaluator:  e,
		expression: expression,
	}, nil
}

func (e *celEvaluator) run(ctx ExprContext, expression string, program *celProgram) (any, error) {
	out, _, err := program.program.Eval(e.activation(ctx))
	if err != nil {
		return nil, evaluateError("cel", expression, ctx, err)
	}
	return celNative(out), nil
}

func (e *celEvaluator) loadOrCompile(expression string, args []string) (*celProgram, error) {
	key := "cel:" + expression + "|" + strings.Join(args, ",")
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(args)
	if err != nil {
		return nil, evaluatorError("cel", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, compileError("cel", expression, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, compileError("cel", expression, err)
	}

	bundle := &celProgram{
		env:     env,
		program: prg,
	}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(args []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("metadata", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("record", celgo.StringType),
		celgo.Variable("field", celgo.StringType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.callBinding()),
			),
		))
	}
	for _, key := range args {
		if skipCELArg(key) {
			continue
		}
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx ExprContext) map[string]any {
	activation := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"record":   ctx.Record,
		"field":    ctx.Field,
	}
	for key, value := range ctx.Args {
		if skipCELArg(key) {
			continue
		}
		activation[key] = value
	}
	return activation
}

type celCompiledExpr struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledExpr) Evaluate(ctx ExprContext) (any, error) {
	if r.evaluator == nil {
		return nil, evaluatorError("cel", errEmptyProgram)
	}
	ctx = ctx.withDefaults()
	program, err := r.evaluator.loadOrCompile(r.expression, argNames(ctx.Args))
	if err != nil {
		return nil, stageError(StageCompile, "cel", r.expression, ctx, err)
	}
	return r.evaluator.run(ctx, r.expression, program)
}

func (e *celEvaluator) callBinding() func(lhs, rhs ref.Val) ref.Val {
	return func(lhs, rhs ref.Val) ref.Val {
		if e.registry == nil {
			return types.NewErr("inherit: function registry not configured")
		}
		name, ok := lhs.Value().(string)
		if !ok {
			return types.NewErr("inherit: call name must be string")
		}
		var args []any
		if list, ok := celNative(rhs).([]any); ok {
			args = list
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

// celNative converts CEL values into plain Go values so coercion sees
// []any and map[string]any instead of CEL wrappers.
func celNative(val ref.Val) any {
	if val == nil || val.Type() == types.NullType {
		return nil
	}
	switch v := val.(type) {
	case traits.Mapper:
		out := make(map[string]any)
		it := v.Iterator()
		for it.HasNext() == types.True {
			key := it.Next()
			out[fmt.Sprint(celNative(key))] = celNative(v.Get(key))
		}
		return out
	case traits.Lister:
		size, _ := v.Size().(types.Int)
		out := make([]any, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			out = append(out, celNative(v.Get(i)))
		}
		return out
	default:
		return val.Value()
	}
}

func argNames(args map[string]any) []string {
	names := make([]string, 0, len(args))
	for key := range args {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

func skipCELArg(name string) bool {
	switch name {
	case "now", "args", "metadata", "record", "field", "call":
		return true
	}
	return !token.IsIdentifier(name)
}

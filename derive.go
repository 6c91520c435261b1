package inherit

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/goliatone/go-inherit/internal/clone"
	"github.com/goliatone/go-inherit/schema"
)

// DeriveOption configures Derive.
type DeriveOption func(*deriveConfig)

type deriveConfig struct {
	tagKey    string
	evaluator Evaluator
	functions *FunctionRegistry
	cache     ProgramCache
	logger    EvaluatorLogger
	args      map[string]any
	now       func() time.Time
	err       error
}

// WithTagKey sets the struct tag key holding field annotations.
func WithTagKey(key string) DeriveOption {
	return func(cfg *deriveConfig) {
		cfg.tagKey = key
	}
}

// WithEvaluator evaluates default expressions with evaluator instead of expr.
func WithEvaluator(evaluator Evaluator) DeriveOption {
	return func(cfg *deriveConfig) {
		cfg.evaluator = evaluator
	}
}

// WithFunctionRegistry exposes registry functions to the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) DeriveOption {
	return func(cfg *deriveConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for default expressions.
func WithCustomFunction(name string, fn Function) DeriveOption {
	return func(cfg *deriveConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.err = errors.Join(cfg.err, err)
		}
	}
}

// WithProgramCache shares compiled default programs across Derive calls.
func WithProgramCache(cache ProgramCache) DeriveOption {
	return func(cfg *deriveConfig) {
		cfg.cache = cache
	}
}

// WithEvaluatorLogger receives one event per evaluated default expression.
func WithEvaluatorLogger(logger EvaluatorLogger) DeriveOption {
	return func(cfg *deriveConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithExprArgs exposes args to default expressions, both as top-level
// variables and under "args".
func WithExprArgs(args map[string]any) DeriveOption {
	return func(cfg *deriveConfig) {
		if cfg.args == nil {
			cfg.args = make(map[string]any, len(args))
		}
		for key, value := range args {
			cfg.args[key] = value
		}
	}
}

// WithClock fixes the time bound to "now" in default expressions.
func WithClock(now func() time.Time) DeriveOption {
	return func(cfg *deriveConfig) {
		cfg.now = now
	}
}

// Procedures holds the default and merge procedures derived for T.
type Procedures[T any] struct {
	plan     schema.Plan
	defaults T
	merger   *structMerger
}

// Derive synthesizes Default and Merge for the struct type T by reflection.
//
// Field annotations are read from struct tags (key "inherit" unless
// WithTagKey says otherwise). Default expressions are evaluated once, here,
// and coerced to the field type; a nil result yields Unset for Field and
// Absent for Optional. Any shape or policy error aborts derivation.
//
// Nested struct fields whose type has no Merge method are merged field by
// field with the same rules. Generated code instead hands such fields to
// MergeValue, which keeps self; generate Merge for the nested type as well
// to get the same result from both.
func Derive[T any](opts ...DeriveOption) (*Procedures[T], error) {
	cfg := deriveConfig{
		tagKey: schema.DefaultTagKey,
		logger: discardEvaluations{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	if cfg.evaluator == nil {
		exprOpts := []ExprEvaluatorOption{ExprWithFunctionRegistry(cfg.functions)}
		if cfg.cache != nil {
			exprOpts = append(exprOpts, ExprWithProgramCache(cfg.cache))
		}
		cfg.evaluator = NewExprEvaluator(exprOpts...)
	}

	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return nil, &schema.ShapeError{Record: typ.String(), Index: -1, Err: schema.ErrNotRecord}
	}
	record, err := schema.FromType(typ, cfg.tagKey)
	if err != nil {
		return nil, err
	}
	plan, err := schema.Compile(record, cfg.validator())
	if err != nil {
		return nil, err
	}

	merger, err := cfg.newStructMerger(typ, plan, map[reflect.Type]*structMerger{})
	if err != nil {
		return nil, err
	}

	defaults, err := cfg.defaultsFor(typ, plan)
	if err != nil {
		return nil, err
	}
	p := &Procedures[T]{plan: plan, merger: merger}
	p.defaults = defaults.Interface().(T)
	return p, nil
}

// MustDerive is like Derive but panics on error. Use it for package level
// variables.
func MustDerive[T any](opts ...DeriveOption) *Procedures[T] {
	p, err := Derive[T](opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Default returns a fresh copy of T's default value.
func (p *Procedures[T]) Default() T {
	return clone.Of(p.defaults)
}

// Merge resolves self over parent field by field. Neither input is mutated.
func (p *Procedures[T]) Merge(self, parent T) T {
	out := p.merger.merge(reflect.ValueOf(&self).Elem(), reflect.ValueOf(&parent).Elem())
	return out.Interface().(T)
}

// Plan returns the validated field plan the procedures were built from.
func (p *Procedures[T]) Plan() schema.Plan {
	return p.plan
}

func (cfg deriveConfig) defaultsFor(typ reflect.Type, plan schema.Plan) (reflect.Value, error) {
	defaults := reflect.New(typ).Elem()
	for _, field := range plan.Fields {
		target := defaults.Field(field.Index)
		if field.Policy.HasDefault {
			value, err := cfg.evaluateDefault(plan.Name, field)
			if err != nil {
				return reflect.Value{}, err
			}
			coerced, err := coerce(value, target.Type())
			if err != nil {
				return reflect.Value{}, &schema.PolicyError{
					Record:     plan.Name,
					Field:      field.Name,
					Annotation: "default=" + field.Policy.Default,
					Err:        fmt.Errorf("%w: %v", schema.ErrInvalidDefault, err),
				}
			}
			target.Set(coerced)
			continue
		}
		ft := target.Type()
		if ft.Kind() == reflect.Struct && !hasDefaultMethod(ft) && !hasMergeMethod(ft) {
			nested, err := cfg.nestedPlan(ft)
			if err != nil {
				return reflect.Value{}, err
			}
			if nested != nil {
				value, err := cfg.defaultsFor(ft, *nested)
				if err != nil {
					return reflect.Value{}, err
				}
				target.Set(value)
				continue
			}
		}
		target.Set(intrinsicDefault(ft))
	}
	return defaults, nil
}

// nestedPlan compiles a nested struct type, returning nil when the type is
// not a flat record.
func (cfg deriveConfig) nestedPlan(typ reflect.Type) (*schema.Plan, error) {
	record, err := schema.FromType(typ, cfg.tagKey)
	if err != nil {
		return nil, err
	}
	plan, err := schema.Compile(record, cfg.validator())
	if err != nil {
		var shapeErr *schema.ShapeError
		if errors.As(err, &shapeErr) {
			return nil, nil
		}
		return nil, err
	}
	if len(plan.Fields) == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (cfg deriveConfig) validator() schema.CompileOption {
	return schema.WithDefaultValidator(func(field schema.PlannedField) error {
		_, err := cfg.evaluator.Compile(field.Policy.Default)
		return err
	})
}

func (cfg deriveConfig) evaluateDefault(record string, field schema.PlannedField) (any, error) {
	now := cfg.now()
	ctx := ExprContext{
		Record: record,
		Field:  field.Name,
		Now:    &now,
		Args:   cfg.args,
	}
	started := time.Now()
	value, err := cfg.evaluator.Evaluate(ctx, field.Policy.Default)
	engine := evaluatorEngineName(cfg.evaluator)
	cfg.logger.LogEvaluation(DefaultEvaluation{
		Engine:   engine,
		Record:   record,
		Field:    field.Name,
		Expr:     field.Policy.Default,
		Value:    value,
		Duration: time.Since(started),
		Err:      err,
	})
	if err != nil {
		return nil, evaluateError(engine, field.Policy.Default, ctx, err)
	}
	return value, nil
}

type mergeStep struct {
	index int
	skip  bool
	// nested is set for struct fields without their own Merge method.
	nested *structMerger
}

type structMerger struct {
	typ   reflect.Type
	steps []mergeStep
}

func (cfg deriveConfig) newStructMerger(typ reflect.Type, plan schema.Plan, seen map[reflect.Type]*structMerger) (*structMerger, error) {
	m := &structMerger{typ: typ, steps: make([]mergeStep, 0, len(plan.Fields))}
	seen[typ] = m
	for _, field := range plan.Fields {
		step := mergeStep{index: field.Index, skip: field.Policy.SkipMerge}
		ft := typ.Field(field.Index).Type
		if !step.skip && ft.Kind() == reflect.Struct && !hasMergeMethod(ft) && !isMergeMethod(reflect.PointerTo(ft), ft) {
			if nested, ok := seen[ft]; ok {
				step.nested = nested
			} else {
				nestedPlan, err := cfg.nestedPlan(ft)
				if err != nil {
					return nil, err
				}
				if nestedPlan != nil {
					nested, err := cfg.newStructMerger(ft, *nestedPlan, seen)
					if err != nil {
						return nil, err
					}
					step.nested = nested
				}
			}
		}
		m.steps = append(m.steps, step)
	}
	return m, nil
}

func (m *structMerger) merge(self, parent reflect.Value) reflect.Value {
	out := reflect.New(m.typ).Elem()
	out.Set(self)
	for _, step := range m.steps {
		sf := self.Field(step.index)
		target := out.Field(step.index)
		switch {
		case step.skip:
			target.Set(clone.Value(sf))
		case step.nested != nil:
			target.Set(step.nested.merge(sf, parent.Field(step.index)))
		default:
			target.Set(mergeReflect(sf, parent.Field(step.index)))
		}
	}
	return out
}

// mergeReflect is the reflective counterpart of MergeValue.
func mergeReflect(self, parent reflect.Value) reflect.Value {
	t := self.Type()
	if hasMergeMethod(t) {
		return self.MethodByName("Merge").Call([]reflect.Value{parent})[0]
	}
	if isMergeMethod(reflect.PointerTo(t), t) {
		receiver := reflect.New(t)
		receiver.Elem().Set(self)
		return receiver.MethodByName("Merge").Call([]reflect.Value{parent})[0]
	}
	return clone.Value(self)
}

// hasMergeMethod reports whether t has a value-receiver Merge(t) t.
func hasMergeMethod(t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return false
	}
	return isMergeMethod(t, t)
}

func isMergeMethod(receiver, t reflect.Type) bool {
	method, ok := receiver.MethodByName("Merge")
	if !ok {
		return false
	}
	mt := method.Type
	return mt.NumIn() == 2 && mt.NumOut() == 1 && mt.In(1) == t && mt.Out(0) == t
}

// intrinsicDefault is the reflective counterpart of DefaultValue.
func intrinsicDefault(t reflect.Type) reflect.Value {
	zero := reflect.Zero(t)
	if !hasDefaultMethod(t) {
		return zero
	}
	return zero.MethodByName("Default").Call(nil)[0]
}

func hasDefaultMethod(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer:
		return false
	}
	method, ok := t.MethodByName("Default")
	if !ok {
		return false
	}
	mt := method.Type
	return mt.NumIn() == 1 && mt.NumOut() == 1 && mt.Out(0) == t
}

// payloadWrapper is implemented by Field and Optional.
type payloadWrapper interface {
	payloadType() reflect.Type
	wrap(reflect.Value) any
}

func wrapperFor(t reflect.Type) (payloadWrapper, bool) {
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	w, ok := reflect.Zero(t).Interface().(payloadWrapper)
	return w, ok
}

var durationType = reflect.TypeFor[time.Duration]()

// coerce converts an evaluated default into a value of type target.
func coerce(value any, target reflect.Type) (reflect.Value, error) {
	if w, ok := wrapperFor(target); ok {
		if value == nil {
			return reflect.ValueOf(w.wrap(reflect.Value{})), nil
		}
		if rv := reflect.ValueOf(value); rv.Type() == target {
			return rv, nil
		}
		inner, err := coerce(value, w.payloadType())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(w.wrap(inner)), nil
	}
	if value == nil {
		return reflect.Zero(target), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		out := reflect.New(target).Elem()
		out.Set(rv)
		return out, nil
	}

	switch {
	case target == durationType:
		switch v := value.(type) {
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(d), nil
		case time.Duration:
			return reflect.ValueOf(v), nil
		}
	case isNumberKind(target.Kind()) && isNumberKind(rv.Kind()):
		return convertNumber(rv, target)
	case rv.Kind() == target.Kind() && rv.Type().ConvertibleTo(target):
		return rv.Convert(target), nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s: %w", value, target, err)
	}
	out := reflect.New(target)
	if err := json.Unmarshal(raw, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s: %w", value, target, err)
	}
	return out.Elem(), nil
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func convertNumber(rv reflect.Value, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Float32, reflect.Float64:
		f := numberAsFloat(rv)
		if out.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%v overflows %s", f, target)
		}
		out.SetFloat(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var i int64
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			// As float64, MaxInt64 rounds up to 2^63, the first value out of range.
			if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
				return reflect.Value{}, fmt.Errorf("%v is not an integer", f)
			}
			i = int64(f)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := rv.Uint()
			if u > math.MaxInt64 {
				return reflect.Value{}, fmt.Errorf("%v overflows %s", u, target)
			}
			i = int64(u)
		default:
			i = rv.Int()
		}
		if out.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("%v overflows %s", i, target)
		}
		out.SetInt(i)
	default:
		var u uint64
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return reflect.Value{}, fmt.Errorf("%v is not an unsigned integer", f)
			}
			u = uint64(f)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			i := rv.Int()
			if i < 0 {
				return reflect.Value{}, fmt.Errorf("%v is negative", i)
			}
			u = uint64(i)
		default:
			u = rv.Uint()
		}
		if out.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("%v overflows %s", u, target)
		}
		out.SetUint(u)
	}
	return out, nil
}

func numberAsFloat(rv reflect.Value) float64 {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	default:
		return float64(rv.Int())
	}
}

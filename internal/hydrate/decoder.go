package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	inherit "github.com/goliatone/go-inherit"
	"gopkg.in/yaml.v3"
)

// Context identifies the layer a payload belongs to.
type Context struct {
	Domain string
	Scope  string
}

// Decoding stages reported by DecodeError.
const (
	StageParse  = "parse"
	StagePre    = "pre-hook"
	StageDecode = "decode"
	StagePost   = "post-hook"
	StageEncode = "encode"
)

// ErrEmptyPayload reports a nil payload or an empty document.
var ErrEmptyPayload = errors.New("hydrate: payload is empty")

// DecodeError locates a failure to turn a layer payload into a record.
type DecodeError struct {
	Stage  string
	Domain string
	Scope  string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("hydrate: %s for domain %q: %v", e.Stage, e.Domain, e.Err)
	}
	return fmt.Sprintf("hydrate: %s for domain %q scope %q: %v", e.Stage, e.Domain, e.Scope, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (ctx Context) fail(stage string, err error) error {
	return &DecodeError{Stage: stage, Domain: ctx.Domain, Scope: ctx.Scope, Err: err}
}

// PreHook rewrites the payload before decoding, for example to expand a
// legacy shorthand into the record's shape.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded record.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the JSON decoding step.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder turns raw layer payloads into typed records. Decoding goes
// through encoding/json so an explicit null lands on a Field as Unset and an
// omitted key leaves it as Inherit.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	configure []func(*json.Decoder)
	custom    CustomDecoder[T]
}

// WithPreHook runs hook on a private copy of the payload before decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.preHooks = append(d.preHooks, hook)
		}
	}
}

// WithPostHook runs hook on the decoded record.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.postHooks = append(d.postHooks, hook)
		}
	}
}

// WithUseNumber keeps untyped numbers as json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return WithDecoderConfig[T]((*json.Decoder).UseNumber)
}

// WithDisallowUnknownFields rejects payload keys the record does not
// declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return WithDecoderConfig[T]((*json.Decoder).DisallowUnknownFields)
}

// WithDecoderConfig configures the json.Decoder directly.
func WithDecoderConfig[T any](configure func(*json.Decoder)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if configure != nil {
			d.configure = append(d.configure, configure)
		}
	}
}

// WithCustomDecoder replaces the JSON decoding step. Hooks still run.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

// NewDecoder builds a Decoder from options.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T. The caller's map is never modified.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, ctx.fail(StageParse, ErrEmptyPayload)
	}
	current, err := clonePayload(payload)
	if err != nil {
		return zero, ctx.fail(StageParse, err)
	}

	for _, hook := range d.preHooks {
		next, err := hook(ctx, current)
		if err != nil {
			return zero, ctx.fail(StagePre, err)
		}
		if next != nil {
			current = next
		}
	}

	result, err := d.decode(ctx, current)
	if err != nil {
		return zero, ctx.fail(StageDecode, err)
	}

	for _, hook := range d.postHooks {
		if err := hook(ctx, &result); err != nil {
			return zero, ctx.fail(StagePost, err)
		}
	}
	return result, nil
}

func (d *Decoder[T]) decode(ctx Context, payload map[string]any) (T, error) {
	if d.custom != nil {
		return d.custom(ctx, payload)
	}
	var result T
	buffer, err := json.Marshal(payload)
	if err != nil {
		return result, err
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configure {
		configure(decoder)
	}
	err = decoder.Decode(&result)
	return result, err
}

// DecodeJSON parses a JSON object and decodes it like Decode.
func (d *Decoder[T]) DecodeJSON(ctx Context, raw []byte) (T, error) {
	var zero T
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return zero, ctx.fail(StageParse, err)
	}
	return d.Decode(ctx, payload)
}

// DecodeYAML parses a YAML document and decodes it like Decode. Nodes tagged
// `!unset` become plain nulls first, so both spellings clear a field.
func (d *Decoder[T]) DecodeYAML(ctx Context, raw []byte) (T, error) {
	var zero T
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return zero, ctx.fail(StageParse, err)
	}
	if len(doc.Content) == 0 {
		return zero, ctx.fail(StageParse, ErrEmptyPayload)
	}
	normalizeUnset(&doc)

	var payload map[string]any
	if err := doc.Decode(&payload); err != nil {
		return zero, ctx.fail(StageParse, err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return d.Decode(ctx, payload)
}

// Encode flattens a record into the payload form Decode accepts. Inherit
// fields tagged `json:",omitzero"` are left out and Unset fields become
// null.
func Encode[T any](ctx Context, record T) (map[string]any, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, ctx.fail(StageEncode, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ctx.fail(StageEncode, err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

func normalizeUnset(node *yaml.Node) {
	if node.Tag == inherit.YAMLUnsetTag {
		node.Kind = yaml.ScalarNode
		node.Tag = "!!null"
		node.Value = "null"
		node.Content = nil
		return
	}
	for _, child := range node.Content {
		normalizeUnset(child)
	}
}

func clonePayload(payload map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}

package state

import (
	"context"
	"fmt"

	"github.com/goliatone/go-inherit/internal/hydrate"
)

// PayloadSource persists untyped snapshot payloads, typically JSON documents
// in a database column or object store.
type PayloadSource interface {
	LoadPayload(ctx context.Context, ref Ref) (payload map[string]any, meta Meta, ok bool, err error)
	SavePayload(ctx context.Context, ref Ref, payload map[string]any, meta Meta) (Meta, error)
}

// PayloadStore adapts a PayloadSource into a typed Store. Payloads decode
// through hydrate so an explicit null clears a field and a missing key
// inherits. Records saved through it should tag their Field members with
// `json:",omitzero"` so Inherit fields are left out of the payload.
type PayloadStore[T any] struct {
	source  PayloadSource
	decoder *hydrate.Decoder[T]
}

// NewPayloadStore wraps source using a decoder built from opts.
func NewPayloadStore[T any](source PayloadSource, opts ...hydrate.DecoderOption[T]) *PayloadStore[T] {
	return &PayloadStore[T]{source: source, decoder: hydrate.NewDecoder(opts...)}
}

func (s *PayloadStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if s == nil || s.source == nil {
		return zero, Meta{}, false, fmt.Errorf("state: payload source is required")
	}
	payload, meta, ok, err := s.source.LoadPayload(ctx, ref)
	if err != nil || !ok {
		return zero, meta, ok, err
	}
	snapshot, err := s.decoder.Decode(hydrate.Context{Domain: ref.Domain, Scope: ref.Scope.Name}, payload)
	if err != nil {
		return zero, meta, false, fmt.Errorf("state: %w", err)
	}
	return snapshot, meta, true, nil
}

func (s *PayloadStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if s == nil || s.source == nil {
		return Meta{}, fmt.Errorf("state: payload source is required")
	}
	payload, err := hydrate.Encode(hydrate.Context{Domain: ref.Domain, Scope: ref.Scope.Name}, snapshot)
	if err != nil {
		return Meta{}, fmt.Errorf("state: %w", err)
	}
	return s.source.SavePayload(ctx, ref, payload, meta)
}

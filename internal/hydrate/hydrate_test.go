package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	inherit "github.com/goliatone/go-inherit"
	"github.com/google/go-cmp/cmp"
)

type notificationSettings struct {
	Enabled    inherit.Field[bool]            `json:"enabled,omitzero" yaml:"enabled"`
	QuietHours inherit.Optional[quietHours]   `json:"quietHours,omitzero" yaml:"quietHours"`
	Frequency  inherit.Field[string]          `json:"frequency,omitzero" yaml:"frequency"`
	Daily      inherit.Field[int]             `json:"daily,omitzero" yaml:"daily"`
	Channels   inherit.Field[map[string]bool] `json:"channels,omitzero" yaml:"channels"`
	Tags       []string                       `json:"tags" yaml:"tags"`
}

type quietHours struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

func TestDecoderTriStatePayloads(t *testing.T) {
	cases := []struct {
		name    string
		ctx     Context
		input   map[string]any
		options []DecoderOption[notificationSettings]
		expect  notificationSettings
		err     string
	}{
		{
			name:  "omitted keys inherit",
			ctx:   Context{Domain: "notifications", Scope: "user"},
			input: map[string]any{"enabled": true},
			expect: notificationSettings{
				Enabled: inherit.Set(true),
			},
		},
		{
			name:  "null clears",
			ctx:   Context{Domain: "notifications", Scope: "project"},
			input: map[string]any{"frequency": nil, "daily": 5, "quietHours": nil},
			expect: notificationSettings{
				Frequency: inherit.Unset[string](),
				Daily:     inherit.Set(5),
			},
		},
		{
			name: "pre hook splits quiet hours",
			ctx:  Context{Domain: "notifications", Scope: "user"},
			input: map[string]any{
				"quietHours": "22:00 - 07:00",
				"channels":   map[string]any{"email": true, "push": false},
			},
			options: []DecoderOption[notificationSettings]{
				WithPreHook[notificationSettings](quietHoursPreHook),
			},
			expect: notificationSettings{
				QuietHours: inherit.Some(quietHours{Start: "22:00", End: "07:00"}),
				Channels:   inherit.Set(map[string]bool{"email": true, "push": false}),
			},
		},
		{
			name:  "post hook tags scope",
			ctx:   Context{Domain: "notifications", Scope: "system"},
			input: map[string]any{},
			options: []DecoderOption[notificationSettings]{
				WithPostHook[notificationSettings](ensureTagPostHook),
			},
			expect: notificationSettings{Tags: []string{"system:notifications"}},
		},
		{
			name:  "unknown fields rejected",
			ctx:   Context{Domain: "notifications"},
			input: map[string]any{"enabled": true, "volume": 3},
			options: []DecoderOption[notificationSettings]{
				WithDisallowUnknownFields[notificationSettings](),
			},
			err: "unknown field",
		},
		{
			name:  "pre hook failure",
			ctx:   Context{Domain: "notifications"},
			input: map[string]any{"quietHours": "late"},
			options: []DecoderOption[notificationSettings]{
				WithPreHook[notificationSettings](quietHoursPreHook),
			},
			err: "pre-hook",
		},
		{
			name:  "custom decoder",
			ctx:   Context{Domain: "notifications"},
			input: map[string]any{"snapshot": `{"daily": 9, "frequency": null}`},
			options: []DecoderOption[notificationSettings]{
				WithCustomDecoder[notificationSettings](snapshotStringDecoder),
			},
			expect: notificationSettings{
				Daily:     inherit.Set(9),
				Frequency: inherit.Unset[string](),
			},
		},
		{
			name:  "nil payload",
			ctx:   Context{Domain: "notifications"},
			input: nil,
			err:   `hydrate: parse for domain "notifications": hydrate: payload is empty`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoder := NewDecoder[notificationSettings](tc.options...)
			result, err := decoder.Decode(tc.ctx, tc.input)
			if tc.err != "" {
				if err == nil || !strings.Contains(err.Error(), tc.err) {
					t.Fatalf("expected error containing %q, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if diff := cmp.Diff(tc.expect, result); diff != "" {
				t.Fatalf("decoded snapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecoderDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"quietHours": "22:00-07:00"}
	decoder := NewDecoder[notificationSettings](WithPreHook[notificationSettings](quietHoursPreHook))
	if _, err := decoder.Decode(Context{Domain: "notifications"}, input); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if input["quietHours"] != "22:00-07:00" {
		t.Fatalf("expected input untouched, got %v", input["quietHours"])
	}
}

func TestDecoderUseNumber(t *testing.T) {
	type loose struct {
		Extra map[string]any `json:"extra"`
	}
	decoder := NewDecoder[loose](WithUseNumber[loose]())
	result, err := decoder.Decode(Context{Domain: "loose"}, map[string]any{"extra": map[string]any{"n": 12}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := result.Extra["n"].(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", result.Extra["n"])
	}
}

func TestDecodeYAMLTreatsNullAndUnsetTagAsUnset(t *testing.T) {
	raw := []byte(`
enabled: false
frequency: null
daily: !unset null
quietHours:
  start: "23:00"
  end: "06:00"
`)
	decoder := NewDecoder[notificationSettings]()
	result, err := decoder.DecodeYAML(Context{Domain: "notifications", Scope: "user"}, raw)
	if err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	expect := notificationSettings{
		Enabled:    inherit.Set(false),
		Frequency:  inherit.Unset[string](),
		Daily:      inherit.Unset[int](),
		QuietHours: inherit.Some(quietHours{Start: "23:00", End: "06:00"}),
	}
	if diff := cmp.Diff(expect, result); diff != "" {
		t.Fatalf("decoded yaml mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeYAMLErrors(t *testing.T) {
	decoder := NewDecoder[notificationSettings]()
	if _, err := decoder.DecodeYAML(Context{Domain: "notifications"}, []byte("enabled: [")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := decoder.DecodeYAML(Context{Domain: "notifications"}, nil); err == nil {
		t.Fatalf("expected empty document error")
	}
	if _, err := decoder.DecodeYAML(Context{Domain: "notifications"}, []byte("daily: many")); err == nil {
		t.Fatalf("expected type error")
	}
}

func quietHoursPreHook(_ Context, payload map[string]any) (map[string]any, error) {
	value, ok := payload["quietHours"].(string)
	if !ok || value == "" {
		return payload, nil
	}

	parts := strings.Split(value, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid quiet hours payload %q", value)
	}

	payload["quietHours"] = map[string]any{
		"start": strings.TrimSpace(parts[0]),
		"end":   strings.TrimSpace(parts[1]),
	}
	return payload, nil
}

func ensureTagPostHook(ctx Context, snapshot *notificationSettings) error {
	if snapshot == nil {
		return errors.New("snapshot is nil")
	}
	if len(snapshot.Tags) > 0 {
		return nil
	}
	snapshot.Tags = []string{fmt.Sprintf("%s:%s", ctx.Scope, ctx.Domain)}
	return nil
}

func snapshotStringDecoder(ctx Context, payload map[string]any) (notificationSettings, error) {
	var zero notificationSettings
	raw, ok := payload["snapshot"].(string)
	if !ok || raw == "" {
		return zero, fmt.Errorf("missing snapshot string for domain %q", ctx.Domain)
	}
	var out notificationSettings
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return zero, err
	}
	return out, nil
}

func TestDecodeErrorLocatesFailure(t *testing.T) {
	decoder := NewDecoder[notificationSettings](WithPostHook[notificationSettings](func(Context, *notificationSettings) error {
		return errors.New("rejected")
	}))
	_, err := decoder.DecodeJSON(Context{Domain: "notifications", Scope: "user"}, []byte(`{"daily": 3}`))

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T: %v", err, err)
	}
	if decodeErr.Stage != StagePost || decodeErr.Scope != "user" {
		t.Fatalf("unexpected error location %+v", decodeErr)
	}
	if err.Error() != `hydrate: post-hook for domain "notifications" scope "user": rejected` {
		t.Fatalf("unexpected message %q", err.Error())
	}

	if _, err := NewDecoder[notificationSettings]().DecodeJSON(Context{}, []byte(`[1]`)); !errors.As(err, &decodeErr) || decodeErr.Stage != StageParse {
		t.Fatalf("expected parse failure, got %v", err)
	}
}

func TestEncodeRoundTripsThroughDecode(t *testing.T) {
	ctx := Context{Domain: "notifications"}
	original := notificationSettings{
		Enabled:   inherit.Set(true),
		Frequency: inherit.Unset[string](),
	}
	payload, err := Encode(ctx, original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, ok := payload["daily"]; ok {
		t.Fatalf("inherited field should be omitted, got %v", payload)
	}
	if value, ok := payload["frequency"]; !ok || value != nil {
		t.Fatalf("unset field should encode as null, got %v", payload)
	}

	decoded, err := NewDecoder[notificationSettings]().Decode(ctx, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

package activity

import (
	"context"
	"slices"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "inherit"

// Config controls activity emission defaults.
type Config struct {
	Enabled bool
	Channel string
	// Verbs limits emission to the listed verbs. Empty emits every verb.
	Verbs []string
}

// Emitter stamps a default channel on lifecycle events and fans them out.
// It is itself an ActivityHook, so it can be handed to a state.Resolver.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   []string
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	live := slices.DeleteFunc(slices.Clone(hooks), func(hook ActivityHook) bool {
		return hook == nil
	})
	return &Emitter{
		hooks:   live,
		enabled: cfg.Enabled && len(live) > 0,
		channel: channel,
		verbs:   slices.Clone(cfg.Verbs),
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit forwards the event to all hooks, applying the default channel when
// the event has none.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if len(e.verbs) > 0 && !slices.Contains(e.verbs, strings.TrimSpace(event.Verb)) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}

// Notify implements ActivityHook.
func (e *Emitter) Notify(ctx context.Context, event Event) error {
	return e.Emit(ctx, event)
}

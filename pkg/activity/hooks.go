package activity

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"
)

// Event is one inherit lifecycle occurrence: a snapshot save or a layer
// taking part in a resolution. IDs are strings so callers can use any
// identifier scheme.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Routable reports whether the event names a verb, an object type and an
// object id. Hooks only ever see routable events.
func (e Event) Routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// Domain returns the settings domain recorded by the lifecycle builders.
func (e Event) Domain() string {
	domain, _ := e.Metadata[MetaDomain].(string)
	return domain
}

// ScopeName returns the scope the event refers to, if any.
func (e Event) ScopeName() string {
	name, _ := e.Metadata[MetaScopeName].(string)
	return name
}

// Changed returns the top-level fields a snapshot save modified.
func (e Event) Changed() []string {
	changed, _ := e.Metadata[MetaChanged].([]string)
	return slices.Clone(changed)
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// OnlyVerbs forwards to hook only the events whose verb is listed, for
// example VerbSnapshotUpdated without the per-layer resolution noise.
func OnlyVerbs(hook ActivityHook, verbs ...string) ActivityHook {
	if hook == nil {
		return nil
	}
	return HookFunc(func(ctx context.Context, event Event) error {
		if !slices.Contains(verbs, event.Verb) {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event and forwards it to every hook, joining their
// errors. Events that are not routable are dropped. Delivery stops at the
// first hook that finds ctx done.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	event = NormalizeEvent(event)
	if !event.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims identifiers, drops blank recipients, copies metadata
// and stamps OccurredAt in UTC when it is missing.
func NormalizeEvent(event Event) Event {
	for _, field := range []*string{
		&event.Verb, &event.ActorID, &event.UserID, &event.TenantID,
		&event.ObjectType, &event.ObjectID, &event.Channel, &event.DefinitionCode,
	} {
		*field = strings.TrimSpace(*field)
	}

	var recipients []string
	for _, recipient := range event.Recipients {
		if recipient = strings.TrimSpace(recipient); recipient != "" {
			recipients = append(recipients, recipient)
		}
	}
	event.Recipients = recipients
	event.Metadata = cloneMap(event.Metadata)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return event
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}

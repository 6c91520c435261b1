package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	inherit "github.com/goliatone/go-inherit"
)

var (
	// ErrETagMismatch reports a save or mutation whose expected ETag no
	// longer matches the stored snapshot.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrNotify wraps activity hook failures. Values returned alongside it
	// are complete; only the notification failed.
	ErrNotify = errors.New("state: activity notification failed")
	// ErrUnknownScope reports a scope name Ref.Identifier has no key layout
	// for.
	ErrUnknownScope = errors.New("state: unsupported scope")
	// ErrMissingScopeID reports an owned scope without its "<scope>_id"
	// metadata entry.
	ErrMissingScopeID = errors.New("state: missing scope id")
)

// DefaultsScopeName is reserved for the layer ResolveWithDefaults appends.
const DefaultsScopeName = "defaults"

// Meta.Extra keys copied onto activity events.
const (
	ExtraActorID  = "actor_id"
	ExtraUserID   = "user_id"
	ExtraTenantID = "tenant_id"
)

// OwnedScopes are the scope names whose snapshots belong to one owner and
// are keyed by the "<scope>_id" metadata entry.
var OwnedScopes = []string{"tenant", "org", "team", "project", "user"}

// Ref addresses the snapshot one scope holds for one record domain.
type Ref struct {
	Domain string
	Scope  inherit.Scope
}

// Meta is store-owned bookkeeping for one snapshot. ETag doubles as the
// optimistic concurrency token: a non-empty ETag passed to Save is the
// version the caller expects to replace.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitzero"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store persists one snapshot per Ref.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Mutator edits a snapshot in place. Returning an error aborts the save.
type Mutator[T any] func(*T) error

// Identifier returns the storage key for the reference: "system/<domain>"
// for the system scope and "<scope>/<id>/<domain>" for owned scopes.
func (r Ref) Identifier() (string, error) {
	name := r.Scope.Name
	if name == "system" {
		return "system/" + r.Domain, nil
	}
	if !slices.Contains(OwnedScopes, name) {
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, name)
	}
	key := name + "_id"
	id, _ := r.Scope.Metadata[key].(string)
	if id == "" {
		return "", fmt.Errorf("%w: scope %q needs metadata %q", ErrMissingScopeID, name, key)
	}
	return name + "/" + id + "/" + r.Domain, nil
}

// overlayMeta applies the non-empty fields of override on top of base.
func overlayMeta(base, override Meta) Meta {
	if override.SnapshotID != "" {
		base.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		base.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		base.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		base.Extra = override.Extra
	}
	return base
}

func (m Meta) clone() Meta {
	if m.Extra != nil {
		extra := make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			extra[k] = v
		}
		m.Extra = extra
	}
	return m
}

package activity

import (
	"strings"
	"time"
)

// Verbs and object types emitted by the inherit lifecycle builders.
const (
	VerbLayerApplied    = "inherit.layer.applied"
	VerbSnapshotCreated = "inherit.snapshot.created"
	VerbSnapshotUpdated = "inherit.snapshot.updated"

	ObjectTypeLayer    = "inherit.layer"
	ObjectTypeSnapshot = "inherit.snapshot"
)

// Metadata keys written by the lifecycle builders.
const (
	MetaDomain        = "domain"
	MetaScopeName     = "scope_name"
	MetaScopePriority = "scope_priority"
	MetaScopeLabel    = "scope_label"
	MetaScopeMetadata = "scope_metadata"
	MetaSnapshotID    = "snapshot_id"
	MetaETag          = "etag"
	MetaChanged       = "changed"
)

// ScopeContext captures scope metadata associated with a layer snapshot.
type ScopeContext struct {
	Name       string
	Label      string
	Priority   int
	Metadata   map[string]any
	SnapshotID string
}

// SnapshotEventInput describes the common fields for snapshot lifecycle events.
type SnapshotEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Domain         string
	Identifier     string
	ETag           string
	Changed        []string
	Scope          ScopeContext
	OccurredAt     time.Time
}

// BuildSnapshotCreatedEvent constructs an event for the first save of a
// scope snapshot.
func BuildSnapshotCreatedEvent(input SnapshotEventInput) Event {
	return buildSnapshotEvent(VerbSnapshotCreated, ObjectTypeSnapshot, input)
}

// BuildSnapshotUpdatedEvent constructs an event for a save that replaced an
// existing snapshot.
func BuildSnapshotUpdatedEvent(input SnapshotEventInput) Event {
	return buildSnapshotEvent(VerbSnapshotUpdated, ObjectTypeSnapshot, input)
}

// BuildLayerAppliedEvent constructs an event describing a layer that took
// part in a resolution.
func BuildLayerAppliedEvent(input SnapshotEventInput) Event {
	return buildSnapshotEvent(VerbLayerApplied, ObjectTypeLayer, input)
}

func buildSnapshotEvent(verb, objectType string, input SnapshotEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if domain := strings.TrimSpace(input.Domain); domain != "" {
		metadata = ensureMetadata(metadata)
		metadata[MetaDomain] = domain
	}
	if input.Scope.Name != "" {
		metadata = ensureMetadata(metadata)
		metadata[MetaScopeName] = input.Scope.Name
		metadata[MetaScopePriority] = input.Scope.Priority
		if input.Scope.Label != "" {
			metadata[MetaScopeLabel] = input.Scope.Label
		}
		if len(input.Scope.Metadata) > 0 {
			metadata[MetaScopeMetadata] = cloneMap(input.Scope.Metadata)
		}
	}
	if input.Scope.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata[MetaSnapshotID] = input.Scope.SnapshotID
	}
	if input.ETag != "" {
		metadata = ensureMetadata(metadata)
		metadata[MetaETag] = input.ETag
	}
	if len(input.Changed) > 0 {
		metadata = ensureMetadata(metadata)
		metadata[MetaChanged] = append([]string{}, input.Changed...)
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Identifier)
	}
	if objectID == "" {
		objectID = strings.TrimSpace(input.Scope.SnapshotID)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

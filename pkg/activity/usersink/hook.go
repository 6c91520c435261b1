package usersink

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/goliatone/go-inherit/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook records inherit lifecycle events in a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// SystemActor is recorded as the actor when an event carries no parseable
	// actor id, e.g. resolutions triggered by background jobs.
	SystemActor uuid.UUID
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// A missing tenant id is taken from the "tenant_id" entry of the scope
// metadata, so snapshots saved at tenant scope are attributed to the tenant.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if !event.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	actor := parseUUID(event.ActorID)
	if actor == uuid.Nil {
		actor = h.SystemActor
	}
	tenant := parseUUID(event.TenantID)
	if tenant == uuid.Nil {
		tenant = parseUUID(scopeTenant(event))
	}

	return h.Sink.Log(ctx, usertypes.ActivityRecord{
		ActorID:    actor,
		UserID:     parseUUID(event.UserID),
		TenantID:   tenant,
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       recordData(event),
		OccurredAt: event.OccurredAt,
	})
}

func recordData(event activity.Event) map[string]any {
	data := maps.Clone(event.Metadata)
	if data == nil {
		data = make(map[string]any, 2)
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = slices.Clone(event.Recipients)
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

func scopeTenant(event activity.Event) string {
	meta, _ := event.Metadata[activity.MetaScopeMetadata].(map[string]any)
	tenant, _ := meta["tenant_id"].(string)
	return tenant
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}

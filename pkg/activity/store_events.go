package activity

import (
	"strings"
	"time"
)

// Verbs emitted for store lifecycle events.
const (
	VerbStoreAdopted     = "store.adopted"
	VerbActionDispatched = "action.dispatched"
	VerbActionFailed     = "action.failed"
	VerbReducerReplaced  = "reducer.replaced"
	VerbStateRehydrated  = "state.rehydrated"
	VerbStatePersisted   = "state.persisted"
)

const (
	ObjectTypeStore  = "store"
	ObjectTypeAction = "action"
	ObjectTypeState  = "state"
)

// StoreEventInput describes the common fields for store lifecycle events.
type StoreEventInput struct {
	ActorID       string
	UserID        string
	TenantID      string
	StoreID       string
	Channel       string
	CorrelationID string
	ActionType    string
	Source        string
	Key           string
	Err           error
	Duration      time.Duration
	Metadata      map[string]any
	OccurredAt    time.Time
}

// BuildStoreAdoptedEvent reports a proxy adopting a store. Source is
// "configure" or "provide".
func BuildStoreAdoptedEvent(input StoreEventInput) Event {
	return buildStoreEvent(VerbStoreAdopted, ObjectTypeStore, input)
}

// BuildActionDispatchedEvent reports a dispatch. A non-nil Err switches the
// verb to action.failed.
func BuildActionDispatchedEvent(input StoreEventInput) Event {
	if input.Err != nil {
		return buildStoreEvent(VerbActionFailed, ObjectTypeAction, input)
	}
	return buildStoreEvent(VerbActionDispatched, ObjectTypeAction, input)
}

// BuildReducerReplacedEvent reports a ReplaceReducer call.
func BuildReducerReplacedEvent(input StoreEventInput) Event {
	return buildStoreEvent(VerbReducerReplaced, ObjectTypeStore, input)
}

// BuildStateRehydratedEvent reports a snapshot loaded from a backend.
func BuildStateRehydratedEvent(input StoreEventInput) Event {
	return buildStoreEvent(VerbStateRehydrated, ObjectTypeState, input)
}

// BuildStatePersistedEvent reports a snapshot written to a backend.
func BuildStatePersistedEvent(input StoreEventInput) Event {
	return buildStoreEvent(VerbStatePersisted, ObjectTypeState, input)
}

func buildStoreEvent(verb, objectType string, input StoreEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.ActionType != "" {
		metadata = ensureMetadata(metadata)
		metadata["action_type"] = input.ActionType
	}
	if input.Source != "" {
		metadata = ensureMetadata(metadata)
		metadata["source"] = input.Source
	}
	if input.Key != "" {
		metadata = ensureMetadata(metadata)
		metadata["key"] = input.Key
	}
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata["error"] = input.Err.Error()
	}
	if input.Duration > 0 {
		metadata = ensureMetadata(metadata)
		metadata["duration_ms"] = input.Duration.Milliseconds()
	}

	objectID := strings.TrimSpace(input.StoreID)
	if objectType == ObjectTypeAction && strings.TrimSpace(input.ActionType) != "" {
		objectID = strings.TrimSpace(input.ActionType)
	}
	if objectType == ObjectTypeState && strings.TrimSpace(input.Key) != "" {
		objectID = strings.TrimSpace(input.Key)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:          verb,
		ActorID:       strings.TrimSpace(input.ActorID),
		UserID:        strings.TrimSpace(input.UserID),
		TenantID:      strings.TrimSpace(input.TenantID),
		ObjectType:    objectType,
		ObjectID:      objectID,
		Channel:       strings.TrimSpace(input.Channel),
		CorrelationID: strings.TrimSpace(input.CorrelationID),
		Metadata:      metadata,
		OccurredAt:    input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

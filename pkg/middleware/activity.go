package middleware

import (
	"context"
	"time"

	redux "github.com/goliatone/go-redux"
	"github.com/goliatone/go-redux/pkg/activity"
	"github.com/google/uuid"
)

// ActivityOption configures the activity middleware.
type ActivityOption func(*activityConfig)

type activityConfig struct {
	storeID string
	actorID string
	channel string
	logger  redux.Logger
}

// WithActivityStoreID sets the store id carried by emitted events.
func WithActivityStoreID(id string) ActivityOption {
	return func(c *activityConfig) {
		c.storeID = id
	}
}

// WithActivityActor sets the actor id carried by emitted events.
func WithActivityActor(id string) ActivityOption {
	return func(c *activityConfig) {
		c.actorID = id
	}
}

// WithActivityChannel overrides the emitter channel.
func WithActivityChannel(channel string) ActivityOption {
	return func(c *activityConfig) {
		c.channel = channel
	}
}

// WithActivityLogger logs hook failures.
func WithActivityLogger(logger redux.Logger) ActivityOption {
	return func(c *activityConfig) {
		c.logger = logger
	}
}

// Activity emits an action.dispatched or action.failed event per dispatch.
// Each event gets a fresh correlation id. Hook failures never fail the
// dispatch.
func Activity[S any](hooks activity.Hooks, opts ...ActivityOption) redux.Middleware[S] {
	cfg := activityConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	emitter := activity.NewEmitter(hooks, activity.Config{Enabled: true, Channel: cfg.channel})

	return func(redux.MiddlewareAPI[S]) func(redux.DispatchFunc) redux.DispatchFunc {
		return func(next redux.DispatchFunc) redux.DispatchFunc {
			if !emitter.Enabled() {
				return next
			}
			return func(action redux.Action) (any, error) {
				start := time.Now()
				result, err := next(action)
				event := activity.BuildActionDispatchedEvent(activity.StoreEventInput{
					ActorID:       cfg.actorID,
					StoreID:       cfg.storeID,
					CorrelationID: uuid.NewString(),
					ActionType:    action.Type,
					Err:           err,
					Duration:      time.Since(start),
				})
				if emitErr := emitter.Emit(context.Background(), event); emitErr != nil && cfg.logger != nil {
					cfg.logger.Warn("redux: activity hook failed", "verb", event.Verb, "error", emitErr)
				}
				return result, err
			}
		}
	}
}

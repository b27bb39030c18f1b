package redux

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Subscription is the handle returned by Stream.Subscribe.
type Subscription interface {
	ID() string
	Unsubscribe()
}

// Stream is a distinct, replaying view over a proxy's snapshots. Each
// subscriber first receives the value derived from the latest snapshot
// (once a store has been adopted) and then one value per change.
type Stream[V any] struct {
	source  *publisher
	project Projection
	convert func(value any) (V, bool)
	equal   func(a, b V) bool
	logger  Logger
	name    string
}

// Subscribe registers fn. fn is never called concurrently with itself for
// the same subscription.
func (s *Stream[V]) Subscribe(fn func(V)) Subscription {
	sub := &subscription{id: uuid.NewString()}
	if fn == nil || s == nil || s.source == nil {
		return sub
	}

	var (
		last V
		seen bool
	)
	entry := &subscriber{}
	entry.deliver = func(state any) {
		raw, err := s.project(state)
		if err != nil {
			s.logger.Warn("redux: selection failed", "subscription", sub.id, "selector", s.name, "error", err)
			return
		}
		value, ok := s.convert(raw)
		if !ok {
			s.logger.Warn("redux: selection type mismatch", "subscription", sub.id, "selector", s.name, "value_type", typeName(raw))
			return
		}
		if seen && s.equal(last, value) {
			return
		}
		last, seen = value, true
		fn(value)
	}
	sub.cancel = func() {
		s.source.detach(entry)
		s.logger.Debug("redux: subscription closed", "subscription", sub.id)
	}

	s.logger.Debug("redux: subscription opened", "subscription", sub.id, "selector", s.name)
	s.source.attach(entry)
	return sub
}

// Watch is Subscribe bound to ctx: the subscription ends when ctx is done.
// A ctx that is already done yields an inert subscription.
func (s *Stream[V]) Watch(ctx context.Context, fn func(V)) Subscription {
	if ctx.Err() != nil {
		return &subscription{id: uuid.NewString()}
	}
	inner := s.Subscribe(fn)
	stop := context.AfterFunc(ctx, inner.Unsubscribe)
	return &subscription{
		id: inner.ID(),
		cancel: func() {
			stop()
			inner.Unsubscribe()
		},
	}
}

type subscription struct {
	id     string
	once   sync.Once
	cancel func()
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

func passthrough(value any) (any, bool) {
	return value, true
}

// convertTo asserts value to V. nil becomes the zero value of V.
func convertTo[V any](value any) (V, bool) {
	var zero V
	if value == nil {
		return zero, true
	}
	typed, ok := value.(V)
	return typed, ok
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

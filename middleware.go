package redux

import (
	"maps"
	"slices"
)

// ApplyMiddleware returns an enhancer that routes Dispatch through mw, the
// first middleware being the outermost. Middleware that dispatch from their
// factory function receive ErrDispatchWhileConstructing.
func ApplyMiddleware[S any](mw ...Middleware[S]) Enhancer[S] {
	return func(next StoreCreator[S]) StoreCreator[S] {
		return func(reducer Reducer[S], initial S) (Store[S], error) {
			store, err := next(reducer, initial)
			if err != nil {
				return nil, err
			}
			wrapped := &middlewareStore[S]{Store: store}
			wrapped.dispatch = func(Action) (any, error) {
				return nil, ErrDispatchWhileConstructing
			}

			chain := make([]func(DispatchFunc) DispatchFunc, 0, len(mw))
			for _, m := range mw {
				if m == nil {
					continue
				}
				chain = append(chain, m(wrapped))
			}
			dispatch := DispatchFunc(store.Dispatch)
			for i := len(chain) - 1; i >= 0; i-- {
				dispatch = chain[i](dispatch)
			}
			wrapped.dispatch = dispatch
			return wrapped, nil
		}
	}
}

type middlewareStore[S any] struct {
	Store[S]
	dispatch DispatchFunc
}

func (m *middlewareStore[S]) Dispatch(action Action) (any, error) {
	return m.dispatch(action)
}

// SubscribeSnapshots keeps the wrapped store's snapshot delivery visible
// through the middleware layer.
func (m *middlewareStore[S]) SubscribeSnapshots(fn func(S)) Unsubscribe {
	if src, ok := m.Store.(SnapshotSource[S]); ok {
		return src.SubscribeSnapshots(fn)
	}
	return m.Store.Subscribe(func() {
		fn(m.Store.GetState())
	})
}

// Compose chains enhancers right to left: Compose(f, g)(c) == f(g(c)).
// Nil entries are skipped.
func Compose[S any](enhancers ...Enhancer[S]) Enhancer[S] {
	return func(next StoreCreator[S]) StoreCreator[S] {
		creator := next
		for i := len(enhancers) - 1; i >= 0; i-- {
			if enhancers[i] == nil {
				continue
			}
			creator = enhancers[i](creator)
		}
		return creator
	}
}

// CombineReducers builds a reducer for map[string]any roots where each key
// is owned by one reducer. Keys without a reducer are dropped. The incoming
// map is returned unchanged when no slice reducer produced a new value.
func CombineReducers(reducers map[string]Reducer[any]) Reducer[map[string]any] {
	keys := make([]string, 0, len(reducers))
	for _, key := range slices.Sorted(maps.Keys(reducers)) {
		if reducers[key] != nil {
			keys = append(keys, key)
		}
	}
	return func(state map[string]any, action Action) map[string]any {
		changed := state == nil || len(state) != len(keys)
		next := make(map[string]any, len(keys))
		for _, key := range keys {
			previous, present := state[key]
			value := reducers[key](previous, action)
			next[key] = value
			if !present || !IdentityComparator(previous, value) {
				changed = true
			}
		}
		if !changed {
			return state
		}
		return next
	}
}

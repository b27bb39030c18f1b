package redux

import (
	"sync"
	"sync/atomic"
)

// MemoryStore is the in-process Store implementation used by CreateStore.
//
// Dispatch is serialized through a queue drained by a single goroutine.
// A dispatch issued from a listener on the draining goroutine is queued and
// returns immediately; it is applied after the current action's listeners
// have run. A dispatch from any other goroutine is queued too but blocks
// until its action has been applied and its listeners notified. Every
// listener therefore observes snapshots in dispatch order.
type MemoryStore[S any] struct {
	stateMu sync.RWMutex
	state   S
	reducer Reducer[S]

	listenersMu sync.Mutex
	listeners   []*storeListener[S]
	nextID      uint64

	queueMu     sync.Mutex
	queue       []queuedAction
	dispatching bool
	drainer     uint64
}

// queuedAction carries a done channel when a caller on another goroutine is
// waiting for the action to be applied.
type queuedAction struct {
	action Action
	done   chan error
}

func (q queuedAction) finish(err error) {
	if q.done != nil {
		q.done <- err
	}
}

type storeListener[S any] struct {
	id       uint64
	listener Listener
	snapshot func(S)
	active   atomic.Bool
}

// NewMemoryStore builds a store and dispatches ActionInit. A nil reducer
// keeps the initial snapshot unchanged.
func NewMemoryStore[S any](reducer Reducer[S], initial S) *MemoryStore[S] {
	if reducer == nil {
		reducer = func(state S, _ Action) S { return state }
	}
	store := &MemoryStore[S]{state: initial, reducer: reducer}
	_, _ = store.Dispatch(Action{Type: ActionInit})
	return store
}

// GetState returns the current snapshot.
func (m *MemoryStore[S]) GetState() S {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Dispatch applies action through the reducer and notifies listeners. It
// returns the action once it has been applied, except for dispatches made
// from a listener during delivery, which return as soon as they are queued.
// Callers waiting on another goroutine's delivery receive ErrDispatchAborted
// when a reducer or listener panics before their action is applied.
func (m *MemoryStore[S]) Dispatch(action Action) (any, error) {
	if action.Type == "" {
		return nil, ErrInvalidAction
	}
	gid := goroutineID()

	m.queueMu.Lock()
	if m.dispatching {
		if m.drainer == gid {
			m.queue = append(m.queue, queuedAction{action: action})
			m.queueMu.Unlock()
			return action, nil
		}
		done := make(chan error, 1)
		m.queue = append(m.queue, queuedAction{action: action, done: done})
		m.queueMu.Unlock()
		if err := <-done; err != nil {
			return nil, err
		}
		return action, nil
	}
	m.dispatching = true
	m.drainer = gid
	m.queue = append(m.queue, queuedAction{action: action})
	m.queueMu.Unlock()

	m.drain()
	return action, nil
}

func (m *MemoryStore[S]) drain() {
	completed := false
	defer func() {
		if completed {
			return
		}
		m.queueMu.Lock()
		dropped := m.queue
		m.queue = nil
		m.dispatching = false
		m.drainer = 0
		m.queueMu.Unlock()
		for _, entry := range dropped {
			entry.finish(ErrDispatchAborted)
		}
	}()

	for {
		m.queueMu.Lock()
		if len(m.queue) == 0 {
			m.dispatching = false
			m.drainer = 0
			m.queueMu.Unlock()
			completed = true
			return
		}
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.queueMu.Unlock()

		m.applyQueued(next)
	}
}

// applyQueued releases a waiting caller even when apply panics; the panic
// keeps unwinding to the draining caller.
func (m *MemoryStore[S]) applyQueued(entry queuedAction) {
	applied := false
	defer func() {
		if applied {
			entry.finish(nil)
		} else {
			entry.finish(ErrDispatchAborted)
		}
	}()
	m.apply(entry.action)
	applied = true
}

func (m *MemoryStore[S]) apply(action Action) {
	m.stateMu.RLock()
	current, reducer := m.state, m.reducer
	m.stateMu.RUnlock()

	next := reducer(current, action)

	m.stateMu.Lock()
	m.state = next
	m.stateMu.Unlock()

	m.listenersMu.Lock()
	listeners := append([]*storeListener[S](nil), m.listeners...)
	m.listenersMu.Unlock()

	for _, entry := range listeners {
		if !entry.active.Load() {
			continue
		}
		if entry.snapshot != nil {
			entry.snapshot(next)
			continue
		}
		entry.listener()
	}
}

// Subscribe registers a change listener. Listeners added during a dispatch
// are first called for the next action.
func (m *MemoryStore[S]) Subscribe(listener Listener) Unsubscribe {
	if listener == nil {
		return func() {}
	}
	return m.register(&storeListener[S]{listener: listener})
}

// SubscribeSnapshots registers fn to receive every committed snapshot.
func (m *MemoryStore[S]) SubscribeSnapshots(fn func(S)) Unsubscribe {
	if fn == nil {
		return func() {}
	}
	return m.register(&storeListener[S]{snapshot: fn})
}

func (m *MemoryStore[S]) register(entry *storeListener[S]) Unsubscribe {
	entry.active.Store(true)

	m.listenersMu.Lock()
	m.nextID++
	entry.id = m.nextID
	m.listeners = append(m.listeners, entry)
	m.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.active.Store(false)
			m.listenersMu.Lock()
			defer m.listenersMu.Unlock()
			for i, candidate := range m.listeners {
				if candidate.id == entry.id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// ReplaceReducer swaps the reducer and dispatches ActionReplace.
func (m *MemoryStore[S]) ReplaceReducer(next Reducer[S]) error {
	if next == nil {
		return ErrNilReducer
	}
	m.stateMu.Lock()
	m.reducer = next
	m.stateMu.Unlock()
	_, err := m.Dispatch(Action{Type: ActionReplace})
	return err
}

func (m *MemoryStore[S]) listenerCount() int {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	return len(m.listeners)
}

// CreateStore builds a MemoryStore, optionally decorated by enhancer.
func CreateStore[S any](reducer Reducer[S], initial S, enhancer Enhancer[S]) (Store[S], error) {
	if reducer == nil {
		return nil, ErrNilReducer
	}
	creator := StoreCreator[S](func(reducer Reducer[S], initial S) (Store[S], error) {
		return NewMemoryStore(reducer, initial), nil
	})
	if enhancer != nil {
		creator = enhancer(creator)
	}
	return creator(reducer, initial)
}

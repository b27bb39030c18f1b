package redux

import (
	"context"
	"sync"

	"github.com/goliatone/go-redux/pkg/activity"
)

// Status reports whether a proxy has adopted a store.
type Status int

const (
	StatusUnconfigured Status = iota
	StatusConfigured
)

func (s Status) String() string {
	switch s {
	case StatusConfigured:
		return "configured"
	default:
		return "unconfigured"
	}
}

// Proxy stands in for a store that may not exist yet. Selections made
// before adoption start emitting once Configure or Provide succeeds. A
// proxy adopts at most one store for its lifetime.
type Proxy[S any] struct {
	cfg     proxyConfig
	emitter *activity.Emitter
	pub     *publisher

	mu    sync.RWMutex
	store Store[S]
}

// New constructs an unconfigured proxy.
func New[S any](opts ...Option) *Proxy[S] {
	cfg := applyOptions(opts)
	cfg.resolveEvaluator()
	return &Proxy[S]{
		cfg:     cfg,
		emitter: activity.NewEmitter(cfg.activityHooks, cfg.activityCfg),
		pub:     newPublisher(),
	}
}

// Configure builds a store from reducer and initial, with middleware applied
// before any extra enhancers, and adopts it.
func (p *Proxy[S]) Configure(reducer Reducer[S], initial S, middleware []Middleware[S], enhancers []Enhancer[S]) error {
	if p.Status() == StatusConfigured {
		return ErrAlreadyConfigured
	}
	chain := append([]Enhancer[S]{ApplyMiddleware(middleware...)}, enhancers...)
	store, err := CreateStore(reducer, initial, Compose(chain...))
	if err != nil {
		return err
	}
	return p.adopt(store, "configure")
}

// Provide adopts an existing store.
func (p *Proxy[S]) Provide(store Store[S]) error {
	if store == nil {
		return ErrNilStore
	}
	return p.adopt(store, "provide")
}

func (p *Proxy[S]) adopt(store Store[S], source string) error {
	p.mu.Lock()
	if p.store != nil {
		p.mu.Unlock()
		return ErrAlreadyConfigured
	}
	p.store = store
	p.mu.Unlock()

	if src, ok := store.(SnapshotSource[S]); ok {
		src.SubscribeSnapshots(func(state S) {
			p.pub.publish(state)
		})
	} else {
		store.Subscribe(func() {
			p.pub.publish(store.GetState())
		})
	}
	p.pub.seed(store.GetState())

	p.cfg.log().Info("redux: store adopted", "store", p.cfg.storeID, "source", source)
	p.emit(activity.BuildStoreAdoptedEvent(activity.StoreEventInput{
		StoreID: p.cfg.storeID,
		Source:  source,
	}))
	return nil
}

// Status reports whether a store has been adopted.
func (p *Proxy[S]) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.store == nil {
		return StatusUnconfigured
	}
	return StatusConfigured
}

// Store exposes the adopted store, e.g. to reach methods beyond Store[S].
func (p *Proxy[S]) Store() (Store[S], bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store, p.store != nil
}

func (p *Proxy[S]) current() (Store[S], error) {
	store, ok := p.Store()
	if !ok {
		return nil, ErrNotConfigured
	}
	return store, nil
}

// GetState returns the adopted store's snapshot.
func (p *Proxy[S]) GetState() (S, error) {
	store, err := p.current()
	if err != nil {
		var zero S
		return zero, err
	}
	return store.GetState(), nil
}

// Dispatch forwards action to the adopted store.
func (p *Proxy[S]) Dispatch(action Action) (any, error) {
	store, err := p.current()
	if err != nil {
		return nil, err
	}
	return store.Dispatch(action)
}

// Subscribe forwards listener to the adopted store.
func (p *Proxy[S]) Subscribe(listener Listener) (Unsubscribe, error) {
	if listener == nil {
		return nil, ErrNilListener
	}
	store, err := p.current()
	if err != nil {
		return nil, err
	}
	return store.Subscribe(listener), nil
}

// ReplaceReducer forwards next to the adopted store.
func (p *Proxy[S]) ReplaceReducer(next Reducer[S]) error {
	store, err := p.current()
	if err != nil {
		return err
	}
	if err := store.ReplaceReducer(next); err != nil {
		return err
	}
	p.cfg.log().Debug("redux: reducer replaced", "store", p.cfg.storeID)
	p.emit(activity.BuildReducerReplacedEvent(activity.StoreEventInput{StoreID: p.cfg.storeID}))
	return nil
}

// Select derives a distinct stream from the proxy's snapshots. A nil cmp
// uses the proxy's default comparator.
func (p *Proxy[S]) Select(sel Selector, cmp Comparator) *Stream[any] {
	if cmp == nil {
		cmp = p.cfg.equality()
	}
	return &Stream[any]{
		source:  p.pub,
		project: p.cfg.resolve(sel),
		convert: passthrough,
		equal:   cmp,
		logger:  p.cfg.log(),
		name:    selectorName(sel),
	}
}

// SelectAs is Select with a typed result. Selected values that are not a V
// are logged and skipped; nil becomes the zero value of V. A nil equal uses
// the proxy's default comparator.
func SelectAs[V any, S any](p *Proxy[S], sel Selector, equal func(a, b V) bool) *Stream[V] {
	if equal == nil {
		cmp := p.cfg.equality()
		equal = func(a, b V) bool { return cmp(a, b) }
	}
	return &Stream[V]{
		source:  p.pub,
		project: p.cfg.resolve(sel),
		convert: convertTo[V],
		equal:   equal,
		logger:  p.cfg.log(),
		name:    selectorName(sel),
	}
}

func (p *Proxy[S]) emit(event activity.Event) {
	if !p.emitter.Enabled() {
		return
	}
	if err := p.emitter.Emit(context.Background(), event); err != nil {
		p.cfg.log().Warn("redux: activity hook failed", "verb", event.Verb, "error", err)
	}
}

func selectorName(sel Selector) string {
	switch typed := sel.(type) {
	case nil:
		return "identity"
	case KeySelector:
		return Path{typed.Key}.String()
	case PathSelector:
		return typed.Path.String()
	case FuncSelector:
		return "func"
	case ExprSelector:
		return typed.Expr
	default:
		return typeName(sel)
	}
}

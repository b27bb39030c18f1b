package persist

import (
	"context"
	"fmt"
	"time"

	redux "github.com/goliatone/go-redux"
	"github.com/goliatone/go-redux/internal/hydrate"
	"github.com/goliatone/go-redux/layering"
	"github.com/goliatone/go-redux/pkg/activity"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Option configures a Persister.
type Option[S any] func(*Persister[S])

// WithLogger attaches a logger. *slog.Logger satisfies redux.Logger.
func WithLogger[S any](logger redux.Logger) Option[S] {
	return func(p *Persister[S]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithActivityHooks emits state.rehydrated and state.persisted events.
func WithActivityHooks[S any](hooks activity.Hooks) Option[S] {
	return func(p *Persister[S]) {
		p.emitter = activity.NewEmitter(hooks, activity.Config{Enabled: true})
	}
}

// WithDecoderOptions customises how stored payloads are decoded, e.g. to
// migrate older snapshot shapes with a pre-hook.
func WithDecoderOptions[S any](opts ...hydrate.DecoderOption[S]) Option[S] {
	return func(p *Persister[S]) {
		p.decoder = hydrate.NewDecoder(opts...)
	}
}

// WithoutMerge returns stored snapshots as decoded instead of layering them
// over the initial state.
func WithoutMerge[S any]() Option[S] {
	return func(p *Persister[S]) {
		p.merge = false
	}
}

// Persister restores and saves the snapshots of one store.
type Persister[S any] struct {
	backend Backend
	key     string
	decoder *hydrate.Decoder[S]
	logger  redux.Logger
	emitter *activity.Emitter
	merge   bool
}

// NewPersister binds backend to key.
func NewPersister[S any](backend Backend, key string, opts ...Option[S]) (*Persister[S], error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	p := &Persister[S]{
		backend: backend,
		key:     key,
		decoder: hydrate.NewDecoder[S](),
		logger:  discard{},
		merge:   true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Key returns the storage key.
func (p *Persister[S]) Key() string {
	return p.key
}

// Rehydrate loads the stored snapshot and layers it over initial. When
// nothing is stored, initial is returned unchanged.
func (p *Persister[S]) Rehydrate(ctx context.Context, initial S) (S, error) {
	data, ok, err := p.backend.Load(ctx, p.key)
	if err != nil {
		return initial, fmt.Errorf("persist: rehydrate %q: %w", p.key, err)
	}
	if !ok {
		p.logger.Debug("persist: no stored snapshot", "key", p.key)
		return initial, nil
	}
	stored, err := p.decoder.DecodeBytes(hydrate.Context{Key: p.key}, data)
	if err != nil {
		return initial, err
	}
	state := stored
	if p.merge {
		state = layering.MergeLayers(stored, initial)
	}
	p.logger.Info("persist: snapshot rehydrated", "key", p.key, "bytes", len(data))
	p.emit(ctx, activity.BuildStateRehydratedEvent(activity.StoreEventInput{Key: p.key}))
	return state, nil
}

// Save encodes state and writes it to the backend.
func (p *Persister[S]) Save(ctx context.Context, state S) error {
	start := time.Now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("persist: encode %q: %w", p.key, err)
	}
	if err := p.backend.Save(ctx, p.key, data); err != nil {
		return err
	}
	p.logger.Debug("persist: snapshot saved", "key", p.key, "bytes", len(data))
	p.emit(ctx, activity.BuildStatePersistedEvent(activity.StoreEventInput{
		Key:      p.key,
		Duration: time.Since(start),
	}))
	return nil
}

// Attach saves every distinct snapshot of proxy until ctx is done or the
// returned subscription is cancelled. Saves run synchronously on the
// dispatching goroutine; failures are logged and do not stop the stream.
func (p *Persister[S]) Attach(ctx context.Context, proxy *redux.Proxy[S]) redux.Subscription {
	return redux.SelectAs[S](proxy, nil, nil).Watch(ctx, func(state S) {
		if err := p.Save(ctx, state); err != nil {
			p.logger.Error("persist: save failed", "key", p.key, "error", err)
		}
	})
}

// Configure rehydrates initial and hands the result to proxy.Configure.
func Configure[S any](ctx context.Context, p *Persister[S], proxy *redux.Proxy[S], reducer redux.Reducer[S], initial S, middleware []redux.Middleware[S], enhancers []redux.Enhancer[S]) error {
	state, err := p.Rehydrate(ctx, initial)
	if err != nil {
		return err
	}
	return proxy.Configure(reducer, state, middleware, enhancers)
}

func (p *Persister[S]) emit(ctx context.Context, event activity.Event) {
	if !p.emitter.Enabled() {
		return
	}
	if err := p.emitter.Emit(ctx, event); err != nil {
		p.logger.Warn("persist: activity hook failed", "verb", event.Verb, "error", err)
	}
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}

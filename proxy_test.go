package redux

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-redux/pkg/activity"
)

type appState struct {
	Count int
	User  map[string]any
}

func appReducer(state appState, action Action) appState {
	switch action.Type {
	case "inc":
		state.Count++
	case "rename":
		user := map[string]any{}
		for k, v := range state.User {
			user[k] = v
		}
		user["name"] = action.Payload
		state.User = user
	}
	return state
}

func newConfigured(t *testing.T, opts ...Option) *Proxy[appState] {
	t.Helper()
	p := New[appState](opts...)
	if err := p.Configure(appReducer, appState{User: map[string]any{"name": "ada"}}, nil, nil); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return p
}

type recorder[V any] struct {
	mu     sync.Mutex
	values []V
}

func (r *recorder[V]) add(v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder[V]) snapshot() []V {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]V(nil), r.values...)
}

func TestProxyForwardingBeforeAdoptionFails(t *testing.T) {
	p := New[appState]()
	if p.Status() != StatusUnconfigured {
		t.Fatalf("expected unconfigured, got %s", p.Status())
	}
	if _, err := p.GetState(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("GetState: expected ErrNotConfigured, got %v", err)
	}
	if _, err := p.Dispatch(Action{Type: "inc"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Dispatch: expected ErrNotConfigured, got %v", err)
	}
	if _, err := p.Subscribe(func() {}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Subscribe: expected ErrNotConfigured, got %v", err)
	}
	if err := p.ReplaceReducer(appReducer); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("ReplaceReducer: expected ErrNotConfigured, got %v", err)
	}
	if _, ok := p.Store(); ok {
		t.Fatalf("expected no store")
	}
}

func TestProxyConfigureTwiceFails(t *testing.T) {
	p := newConfigured(t)
	err := p.Configure(appReducer, appState{}, nil, nil)
	if !errors.Is(err, ErrAlreadyConfigured) {
		t.Fatalf("expected ErrAlreadyConfigured, got %v", err)
	}
	if err := p.Provide(NewMemoryStore(appReducer, appState{})); !errors.Is(err, ErrAlreadyConfigured) {
		t.Fatalf("expected ErrAlreadyConfigured from Provide, got %v", err)
	}
	if p.Status() != StatusConfigured {
		t.Fatalf("expected configured, got %s", p.Status())
	}
}

func TestProxyProvideRejectsNil(t *testing.T) {
	if err := New[int]().Provide(nil); !errors.Is(err, ErrNilStore) {
		t.Fatalf("expected ErrNilStore, got %v", err)
	}
}

func TestProxyGetStateAfterProvideMatchesStore(t *testing.T) {
	store := NewMemoryStore(appReducer, appState{Count: 4})
	p := New[appState]()
	if err := p.Provide(store); err != nil {
		t.Fatalf("provide: %v", err)
	}
	state, err := p.GetState()
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Count != store.GetState().Count {
		t.Fatalf("expected %d, got %d", store.GetState().Count, state.Count)
	}
	adopted, ok := p.Store()
	if !ok || adopted != Store[appState](store) {
		t.Fatalf("expected adopted store exposed")
	}
}

func TestProxySelectBeforeAdoptionIsRetroactive(t *testing.T) {
	p := New[appState]()
	got := &recorder[any]{}
	sub := p.Select(Key("Count"), nil).Subscribe(got.add)
	defer sub.Unsubscribe()

	if len(got.snapshot()) != 0 {
		t.Fatalf("expected no emission before adoption")
	}
	if err := p.Configure(appReducer, appState{Count: 2}, nil, nil); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if _, err := p.Dispatch(Action{Type: "inc"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if values := got.snapshot(); !slices.Equal(values, []any{2, 3}) {
		t.Fatalf("expected [2 3], got %v", values)
	}
}

func TestProxySelectEmitsDistinctValuesInOrder(t *testing.T) {
	p := newConfigured(t)
	counts := &recorder[any]{}
	names := &recorder[any]{}
	p.Select(PathOf("Count"), nil).Subscribe(counts.add)
	p.Select(PathOf("User", "name"), nil).Subscribe(names.add)

	for _, action := range []Action{
		{Type: "inc"},
		{Type: "noop"},
		{Type: "rename", Payload: "grace"},
		{Type: "rename", Payload: "grace"},
		{Type: "inc"},
	} {
		if _, err := p.Dispatch(action); err != nil {
			t.Fatalf("dispatch %s: %v", action.Type, err)
		}
	}

	if values := counts.snapshot(); !slices.Equal(values, []any{0, 1, 2}) {
		t.Fatalf("expected counts [0 1 2], got %v", values)
	}
	if values := names.snapshot(); !slices.Equal(values, []any{"ada", "grace"}) {
		t.Fatalf("expected names [ada grace], got %v", values)
	}
}

func TestProxySelectLateSubscriberReplaysLatest(t *testing.T) {
	p := newConfigured(t)
	_, _ = p.Dispatch(Action{Type: "inc"})
	_, _ = p.Dispatch(Action{Type: "inc"})

	got := &recorder[any]{}
	p.Select(Key("Count"), nil).Subscribe(got.add)
	if values := got.snapshot(); !slices.Equal(values, []any{2}) {
		t.Fatalf("expected replay of latest value, got %v", values)
	}
}

func TestProxySelectCustomComparator(t *testing.T) {
	p := newConfigured(t)
	got := &recorder[any]{}
	parity := func(a, b any) bool { return a.(int)%2 == b.(int)%2 }
	p.Select(Key("Count"), parity).Subscribe(got.add)

	for i := 0; i < 4; i++ {
		_, _ = p.Dispatch(Action{Type: "inc"})
	}
	if values := got.snapshot(); !slices.Equal(values, []any{0, 1, 2, 3, 4}) {
		t.Fatalf("expected alternating parity values, got %v", values)
	}

	always := &recorder[any]{}
	p.Select(Key("Count"), func(any, any) bool { return true }).Subscribe(always.add)
	_, _ = p.Dispatch(Action{Type: "inc"})
	if values := always.snapshot(); len(values) != 1 {
		t.Fatalf("expected only the replayed value, got %v", values)
	}
}

func TestProxyUnsubscribeStopsDelivery(t *testing.T) {
	p := newConfigured(t)
	got := &recorder[any]{}
	sub := p.Select(Key("Count"), nil).Subscribe(got.add)
	if sub.ID() == "" {
		t.Fatalf("expected subscription id")
	}
	other := p.Select(Key("Count"), nil).Subscribe(func(any) {})
	if sub.ID() == other.ID() {
		t.Fatalf("expected unique subscription ids")
	}
	sub.Unsubscribe()
	sub.Unsubscribe()
	_, _ = p.Dispatch(Action{Type: "inc"})

	if values := got.snapshot(); !slices.Equal(values, []any{0}) {
		t.Fatalf("expected delivery to stop, got %v", values)
	}
	if p.pub.size() != 1 {
		t.Fatalf("expected one remaining subscriber, got %d", p.pub.size())
	}
}

func TestProxyDispatchFromSubscriberKeepsOrder(t *testing.T) {
	p := newConfigured(t)
	first := &recorder[any]{}
	second := &recorder[any]{}

	p.Select(Key("Count"), nil).Subscribe(func(v any) {
		first.add(v)
		if v == 1 {
			if _, err := p.Dispatch(Action{Type: "inc"}); err != nil {
				t.Errorf("nested dispatch: %v", err)
			}
		}
	})
	p.Select(Key("Count"), nil).Subscribe(second.add)

	_, _ = p.Dispatch(Action{Type: "inc"})

	want := []any{0, 1, 2}
	if values := first.snapshot(); !slices.Equal(values, want) {
		t.Fatalf("expected %v for first subscriber, got %v", want, values)
	}
	if values := second.snapshot(); !slices.Equal(values, want) {
		t.Fatalf("expected %v for second subscriber, got %v", want, values)
	}
}

func TestProxySelectSubscribeConcurrentWithDispatch(t *testing.T) {
	const workers, perWorker, subscribers = 8, 25, 8
	p := newConfigured(t)

	lasts := make([]*recorder[any], subscribers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := p.Dispatch(Action{Type: "inc"}); err != nil {
					t.Errorf("dispatch: %v", err)
					return
				}
			}
		}()
	}
	for i := range lasts {
		lasts[i] = &recorder[any]{}
		wg.Add(1)
		go func(rec *recorder[any]) {
			defer wg.Done()
			p.Select(Key("Count"), nil).Subscribe(rec.add)
		}(lasts[i])
	}
	wg.Wait()

	want := workers * perWorker
	state, err := p.GetState()
	if err != nil || state.Count != want {
		t.Fatalf("expected count %d, got %d (%v)", want, state.Count, err)
	}
	for i, rec := range lasts {
		values := rec.snapshot()
		if len(values) == 0 || values[len(values)-1] != want {
			t.Fatalf("subscriber %d: expected to end on %d, got %v", i, want, values)
		}
		for k := 1; k < len(values); k++ {
			if values[k].(int) <= values[k-1].(int) {
				t.Fatalf("subscriber %d: expected increasing values, got %v", i, values)
			}
		}
	}
}

func TestProxySubscribeForwardsToStore(t *testing.T) {
	p := newConfigured(t)
	if _, err := p.Subscribe(nil); !errors.Is(err, ErrNilListener) {
		t.Fatalf("expected ErrNilListener, got %v", err)
	}
	calls := 0
	unsubscribe, err := p.Subscribe(func() { calls++ })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_, _ = p.Dispatch(Action{Type: "inc"})
	unsubscribe()
	_, _ = p.Dispatch(Action{Type: "inc"})
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestProxyReplaceReducer(t *testing.T) {
	capture := &activity.CaptureHook{}
	p := newConfigured(t, WithActivityHooks(activity.Hooks{capture}), WithStoreID("app"))
	got := &recorder[any]{}
	p.Select(Key("Count"), nil).Subscribe(got.add)

	err := p.ReplaceReducer(func(state appState, action Action) appState {
		if action.Type == ActionReplace {
			state.Count = 100
		}
		return state
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if values := got.snapshot(); !slices.Equal(values, []any{0, 100}) {
		t.Fatalf("expected replace dispatch to reach streams, got %v", values)
	}
	if verbs := capture.Verbs(); !slices.Equal(verbs, []string{activity.VerbStoreAdopted, activity.VerbReducerReplaced}) {
		t.Fatalf("unexpected activity verbs %v", verbs)
	}
	if capture.Snapshot()[0].ObjectID != "app" {
		t.Fatalf("expected store id on events, got %+v", capture.Snapshot()[0])
	}
}

func TestProxyConfigureWithMiddlewareAndEnhancer(t *testing.T) {
	var seen []string
	logging := func(api MiddlewareAPI[appState]) func(DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(action Action) (any, error) {
				seen = append(seen, action.Type)
				return next(action)
			}
		}
	}
	enhanced := false
	enhancer := func(next StoreCreator[appState]) StoreCreator[appState] {
		return func(reducer Reducer[appState], initial appState) (Store[appState], error) {
			enhanced = true
			return next(reducer, initial)
		}
	}

	p := New[appState]()
	err := p.Configure(appReducer, appState{}, []Middleware[appState]{logging}, []Enhancer[appState]{enhancer})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	got := &recorder[any]{}
	p.Select(Key("Count"), nil).Subscribe(got.add)
	_, _ = p.Dispatch(Action{Type: "inc"})

	if !enhanced {
		t.Fatalf("expected enhancer applied")
	}
	if !slices.Equal(seen, []string{"inc"}) {
		t.Fatalf("expected middleware to observe dispatch, got %v", seen)
	}
	if values := got.snapshot(); !slices.Equal(values, []any{0, 1}) {
		t.Fatalf("expected stream to follow middleware store, got %v", values)
	}
}

type plainStore struct {
	inner *MemoryStore[int]
}

func (s plainStore) GetState() int                           { return s.inner.GetState() }
func (s plainStore) Dispatch(action Action) (any, error)     { return s.inner.Dispatch(action) }
func (s plainStore) Subscribe(listener Listener) Unsubscribe { return s.inner.Subscribe(listener) }
func (s plainStore) ReplaceReducer(next Reducer[int]) error  { return s.inner.ReplaceReducer(next) }

func TestProxyProvideStoreWithoutSnapshots(t *testing.T) {
	p := New[int]()
	if err := p.Provide(plainStore{inner: NewMemoryStore(counterReducer, 5)}); err != nil {
		t.Fatalf("provide: %v", err)
	}
	got := &recorder[int]{}
	SelectAs[int](p, nil, nil).Subscribe(got.add)
	_, _ = p.Dispatch(Action{Type: "inc"})
	if values := got.snapshot(); !slices.Equal(values, []int{5, 6}) {
		t.Fatalf("expected [5 6], got %v", values)
	}
}

func TestSelectAsTypedStream(t *testing.T) {
	p := newConfigured(t)
	names := &recorder[string]{}
	SelectAs[string](p, PathOf("User", "name"), nil).Subscribe(names.add)

	missing := &recorder[string]{}
	SelectAs[string](p, PathOf("User", "email"), nil).Subscribe(missing.add)

	mismatched := &recorder[string]{}
	SelectAs[string](p, Key("Count"), nil).Subscribe(mismatched.add)

	_, _ = p.Dispatch(Action{Type: "rename", Payload: "grace"})

	if values := names.snapshot(); !slices.Equal(values, []string{"ada", "grace"}) {
		t.Fatalf("expected typed names, got %v", values)
	}
	if values := missing.snapshot(); !slices.Equal(values, []string{""}) {
		t.Fatalf("expected zero value for absent path, got %v", values)
	}
	if values := mismatched.snapshot(); len(values) != 0 {
		t.Fatalf("expected mismatched values skipped, got %v", values)
	}
}

func TestStreamWatchEndsWithContext(t *testing.T) {
	p := newConfigured(t)
	ctx, cancel := context.WithCancel(context.Background())
	got := &recorder[int]{}
	done := make(chan struct{})

	stream := SelectAs[int](p, Key("Count"), nil)
	stream.Watch(ctx, got.add)
	sentinel := stream.Watch(context.Background(), func(v int) {
		if v == 2 {
			close(done)
		}
	})
	defer sentinel.Unsubscribe()

	_, _ = p.Dispatch(Action{Type: "inc"})
	cancel()
	// AfterFunc runs the unsubscribe on its own goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for p.pub.size() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("watch subscription still attached after cancel")
		}
		runtime.Gosched()
	}
	_, _ = p.Dispatch(Action{Type: "inc"})
	<-done

	if values := got.snapshot(); !slices.Equal(values, []int{0, 1}) {
		t.Fatalf("expected delivery to stop after cancel, got %v", values)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	inert := stream.Watch(cancelled, func(int) { t.Fatalf("unexpected delivery") })
	if inert.ID() == "" {
		t.Fatalf("expected id on inert subscription")
	}
	inert.Unsubscribe()
}

func TestProxyExprSelectorAndEvaluate(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("double", func(args ...any) (any, error) {
		return args[0].(int) * 2, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	var events []EvaluatorLogEvent
	p := New[map[string]any](
		WithFunctionRegistry(registry),
		WithEvaluatorLogger(EvaluatorLoggerFunc(func(e EvaluatorLogEvent) { events = append(events, e) })),
	)
	if _, err := p.Evaluate("count"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := p.Provide(NewMemoryStore[map[string]any](nil, map[string]any{"count": 4})); err != nil {
		t.Fatalf("provide: %v", err)
	}

	got := &recorder[any]{}
	p.Select(Expr("double(count) + 1"), nil).Subscribe(got.add)
	if values := got.snapshot(); !slices.Equal(values, []any{9}) {
		t.Fatalf("expected [9], got %v", values)
	}

	value, err := p.Evaluate("count > 3")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if value != true {
		t.Fatalf("expected true, got %v", value)
	}
	if len(events) != 2 || events[0].Engine != "expr" || events[0].Err != nil {
		t.Fatalf("unexpected evaluation log events %+v", events)
	}

	broken := &recorder[any]{}
	p.Select(Expr("count +"), nil).Subscribe(broken.add)
	if values := broken.snapshot(); len(values) != 0 {
		t.Fatalf("expected failing expression to be skipped, got %v", values)
	}
}

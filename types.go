package redux

import "time"

// Built-in action types dispatched by the store itself.
const (
	ActionInit    = "@@redux/INIT"
	ActionReplace = "@@redux/REPLACE"
)

// Action describes an intended state change.
type Action struct {
	Type    string         `json:"type" yaml:"type"`
	Payload any            `json:"payload,omitempty" yaml:"payload,omitempty"`
	Meta    map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	Error   bool           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Reducer computes the next snapshot from the current one and an action.
// Reducers must be pure and must not mutate state in place.
type Reducer[S any] func(state S, action Action) S

// Listener is notified after every committed dispatch.
type Listener func()

// Unsubscribe cancels a listener registration. Calling it more than once is
// a no-op.
type Unsubscribe func()

// DispatchFunc is the signature shared by Store.Dispatch and middleware.
type DispatchFunc func(action Action) (any, error)

// Store is the state container contract consumed by Proxy.
type Store[S any] interface {
	GetState() S
	Dispatch(action Action) (any, error)
	Subscribe(listener Listener) Unsubscribe
	ReplaceReducer(next Reducer[S]) error
}

// SnapshotSource is implemented by stores able to hand each committed
// snapshot to subscribers directly. Proxy prefers it over Subscribe +
// GetState so every dispatch is observed with its own snapshot.
type SnapshotSource[S any] interface {
	SubscribeSnapshots(fn func(S)) Unsubscribe
}

// StoreCreator builds a store from a reducer and an initial snapshot.
type StoreCreator[S any] func(reducer Reducer[S], initial S) (Store[S], error)

// Enhancer wraps a StoreCreator to decorate the store it produces.
type Enhancer[S any] func(next StoreCreator[S]) StoreCreator[S]

// MiddlewareAPI is the restricted store view handed to middleware.
type MiddlewareAPI[S any] interface {
	GetState() S
	Dispatch(action Action) (any, error)
}

// Middleware intercepts dispatches before they reach the store.
type Middleware[S any] func(api MiddlewareAPI[S]) func(next DispatchFunc) DispatchFunc

// EvalContext carries the inputs for an expression selector evaluation.
type EvalContext struct {
	State any
	Now   *time.Time
	Args  map[string]any
}

func (ctx EvalContext) withDefaults() EvalContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx EvalContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

// Evaluator executes selector expressions against a snapshot.
type Evaluator interface {
	Evaluate(ctx EvalContext, expr string) (any, error)
	Compile(expr string) (CompiledExpr, error)
}

// CompiledExpr is a reusable expression program.
type CompiledExpr interface {
	Evaluate(ctx EvalContext) (any, error)
}

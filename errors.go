package redux

import "errors"

var (
	// ErrAlreadyConfigured is returned by Configure and Provide once a store
	// has been adopted.
	ErrAlreadyConfigured = errors.New("redux: store already configured")
	// ErrNotConfigured is returned by forwarding operations invoked before a
	// store has been adopted.
	ErrNotConfigured = errors.New("redux: store not configured")
	// ErrPathNotFound reports a path lookup that hit a missing segment.
	ErrPathNotFound = errors.New("redux: path not found")
	// ErrInvalidAction rejects actions without a type.
	ErrInvalidAction = errors.New("redux: action type must not be empty")
	// ErrNilReducer rejects a missing reducer.
	ErrNilReducer = errors.New("redux: reducer must not be nil")
	// ErrNilStore rejects Provide(nil).
	ErrNilStore = errors.New("redux: store must not be nil")
	// ErrNilListener rejects Subscribe(nil).
	ErrNilListener = errors.New("redux: listener must not be nil")
	// ErrAlreadyInitialized is returned by Binder.Initialize when called twice.
	ErrAlreadyInitialized = errors.New("redux: binder already initialized")
	// ErrNotInitialized is returned by bound accessors before Initialize.
	ErrNotInitialized = errors.New("redux: binder not initialized")
	// ErrDispatchWhileConstructing guards middleware that dispatch from
	// their factory function.
	ErrDispatchWhileConstructing = errors.New("redux: dispatching while constructing middleware is not allowed")
	// ErrDispatchAborted is returned to waiting callers whose queued action
	// was dropped, or interrupted, by a reducer or listener panic.
	ErrDispatchAborted = errors.New("redux: dispatch aborted by a panic in another dispatch")
)

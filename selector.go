package redux

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Selector specifies how to derive a value from a snapshot. It is a closed
// set: KeySelector, PathSelector, FuncSelector and ExprSelector. A nil
// Selector selects the whole snapshot.
type Selector interface {
	isSelector()
}

// KeySelector reads a single property (string key) or index (int).
type KeySelector struct {
	Key any
}

// PathSelector walks nested properties in order.
type PathSelector struct {
	Path Path
}

// FuncSelector projects the snapshot with an arbitrary function.
type FuncSelector func(state any) any

// ExprSelector evaluates an expression against the snapshot. When Evaluator
// is nil the proxy's evaluator (expr-lang by default) is used.
type ExprSelector struct {
	Expr      string
	Evaluator Evaluator
}

func (KeySelector) isSelector()  {}
func (PathSelector) isSelector() {}
func (FuncSelector) isSelector() {}
func (ExprSelector) isSelector() {}

// Key selects a named property.
func Key(key string) Selector {
	return KeySelector{Key: key}
}

// Index selects a positional element.
func Index(idx int) Selector {
	return KeySelector{Key: idx}
}

// PathOf selects a nested value. Segments must be strings or ints.
func PathOf(segments ...any) Selector {
	return PathSelector{Path: Path(segments).clone()}
}

// DottedPath selects a nested value described as "a.b.0".
func DottedPath(dotted string) Selector {
	return PathSelector{Path: ParsePath(dotted)}
}

// Func adapts a typed projection. Snapshots of another type reach fn as the
// zero value of S.
func Func[S, V any](fn func(S) V) Selector {
	return FuncSelector(func(state any) any {
		typed, _ := state.(S)
		return fn(typed)
	})
}

// Expr selects with an expression evaluated by the configured engine.
func Expr(expr string) Selector {
	return ExprSelector{Expr: expr}
}

// Projection is the normalized form of every selector.
type Projection func(state any) (any, error)

// Resolve normalizes sel into a Projection. Missing path segments resolve to
// nil rather than an error. Expression selectors without an evaluator use
// the default expr-lang engine.
func Resolve(sel Selector) Projection {
	cfg := proxyConfig{}
	return cfg.resolve(sel)
}

func identity(state any) (any, error) {
	return state, nil
}

func (c *proxyConfig) resolve(sel Selector) Projection {
	switch typed := sel.(type) {
	case nil:
		return identity
	case PathSelector:
		path := typed.Path.clone()
		return func(state any) (any, error) {
			out, _ := GetIn(state, path)
			return out, nil
		}
	case FuncSelector:
		if typed == nil {
			return identity
		}
		return func(state any) (any, error) {
			return typed(state), nil
		}
	case KeySelector:
		path := Path{typed.Key}
		return func(state any) (any, error) {
			out, _ := GetIn(state, path)
			return out, nil
		}
	case ExprSelector:
		return c.exprProjection(typed)
	default:
		return func(any) (any, error) {
			return nil, fmt.Errorf("redux: unsupported selector %T", sel)
		}
	}
}

func (c *proxyConfig) exprProjection(sel ExprSelector) Projection {
	expression := strings.TrimSpace(sel.Expr)
	if expression == "" {
		return func(any) (any, error) {
			return nil, fmt.Errorf("redux: expression must not be empty")
		}
	}
	evaluator := sel.Evaluator
	if evaluator == nil {
		evaluator = c.resolveEvaluator()
	}
	if evaluator == nil {
		return func(any) (any, error) {
			return nil, ErrNoEvaluator
		}
	}
	engine := evaluatorEngineName(evaluator)
	logger := c.evaluationLogger()

	var (
		once       sync.Once
		compiled   CompiledExpr
		compileErr error
	)
	return func(state any) (any, error) {
		once.Do(func() {
			compiled, compileErr = evaluator.Compile(expression)
		})
		if compileErr != nil {
			return nil, wrapEvaluationError(engine, expression, compileErr)
		}
		start := time.Now()
		value, err := compiled.Evaluate(EvalContext{State: state})
		err = wrapEvaluationError(engine, expression, err)
		logger.LogEvaluation(EvaluatorLogEvent{
			Engine:   engine,
			Expr:     expression,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return nil, err
		}
		return value, nil
	}
}

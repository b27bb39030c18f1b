package redux

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError carries the engine and expression behind a failed
// expression selector.
type EvaluationError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	expr := "expr=<empty>"
	if e.Expr != "" {
		expr = fmt.Sprintf("expr=%q", e.Expr)
	}
	return fmt.Sprintf("redux: %s selector %s: %v", e.Engine, expr, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapEngineError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "redux:") {
		return err
	}
	return fmt.Errorf("redux: %s evaluator: %w", engine, err)
}

// wrapEvaluationError fills in missing metadata on an existing
// EvaluationError or wraps err in a new one.
func wrapEvaluationError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		return evalErr
	}
	return &EvaluationError{Engine: engine, Expr: expr, Err: err}
}

package redux

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNoEvaluator = errors.New("redux: evaluator not configured")

// Evaluate runs expr once against the proxy's current snapshot using the
// configured evaluator.
func (p *Proxy[S]) Evaluate(expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("redux: expression must not be empty")
	}
	state, err := p.GetState()
	if err != nil {
		return nil, err
	}
	evaluator := p.cfg.resolveEvaluator()
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(EvalContext{State: state}, expr)
	evalErr = wrapEvaluationError(engine, expr, evalErr)
	p.cfg.evaluationLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

// resolveEvaluator returns the configured evaluator, lazily building the
// expr-lang default with the configured cache and functions.
func (c *proxyConfig) resolveEvaluator() Evaluator {
	if c.evaluator != nil {
		return c.evaluator
	}
	var exprOpts []ExprEvaluatorOption
	if c.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(c.programCache))
	}
	if c.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(c.functions))
	}
	c.evaluator = NewExprEvaluator(exprOpts...)
	return c.evaluator
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*redux.exprEvaluator":
		return "expr"
	case "*redux.celEvaluator":
		return "cel"
	case "*redux.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}

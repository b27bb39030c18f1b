package redux

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache reuses compiled programs across selectors.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes registry functions by name and through
// call(name, args...).
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator runs selector expressions with github.com/expr-lang/expr.
// The snapshot is bound as `state`; when it is a map[string]any its keys
// are also bound at the top level.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx EvalContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEngineError("expr", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return e.run(program, expression, ctx)
}

func (e *exprEvaluator) Compile(expression string) (CompiledExpr, error) {
	if expression == "" {
		return nil, wrapEngineError("expr", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiled{evaluator: e, program: program, expression: expression}, nil
}

func (e *exprEvaluator) run(program *exprvm.Program, expression string, ctx EvalContext) (any, error) {
	result, err := exprlang.Run(program, e.environment(ctx.withDefaults()))
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, err)
	}
	return result, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get("expr:" + expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			fn := name
			options = append(options, exprlang.Function(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}))
		}
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, err)
	}
	if e.cache != nil {
		e.cache.Set("expr:"+expression, program)
	}
	return program, nil
}

func (e *exprEvaluator) environment(ctx EvalContext) map[string]any {
	env := map[string]any{}
	if snapshot, ok := ctx.State.(map[string]any); ok {
		for key, value := range snapshot {
			env[key] = value
		}
	}
	env["state"] = ctx.State
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	if e.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
	}
	return env
}

type exprCompiled struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (c *exprCompiled) Evaluate(ctx EvalContext) (any, error) {
	return c.evaluator.run(c.program, c.expression, ctx)
}

//go:build js_eval

package redux

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each evaluation
// runs in a fresh runtime, so selectors cannot leak globals into each other.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	cfg := applyJSEvaluatorOptions(opts)
	return &jsEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

// JSEvaluatorAvailable reports whether the binary was built with js_eval.
func JSEvaluatorAvailable() bool {
	return true
}

func (e *jsEvaluator) Evaluate(ctx EvalContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEngineError("js", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, err)
	}
	return e.run(ctx, expression, program)
}

func (e *jsEvaluator) Compile(expression string) (CompiledExpr, error) {
	if expression == "" {
		return nil, wrapEngineError("js", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, err)
	}
	return &jsCompiled{evaluator: e, expression: expression, program: program}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get("js:" + expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapJSExpression(expression), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set("js:"+expression, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx EvalContext, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	if err := e.inject(vm, ctx.withDefaults()); err != nil {
		return nil, wrapEvaluationError("js", expression, err)
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, err)
	}
	return value.Export(), nil
}

func (e *jsEvaluator) inject(vm *goja.Runtime, ctx EvalContext) error {
	if snapshot, ok := ctx.State.(map[string]any); ok {
		for key, value := range snapshot {
			if err := vm.Set(key, value); err != nil {
				return err
			}
		}
	}
	if err := vm.Set("state", ctx.State); err != nil {
		return err
	}
	if err := vm.Set("now", ctx.timestamp()); err != nil {
		return err
	}
	if err := vm.Set("args", ctx.Args); err != nil {
		return err
	}
	if e.registry == nil {
		return nil
	}
	if err := vm.Set("call", func(name string, arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}); err != nil {
		return err
	}
	for _, name := range e.registry.Names() {
		fn := name
		if err := vm.Set(fn, func(arguments ...any) (any, error) {
			return e.registry.Call(fn, arguments...)
		}); err != nil {
			return err
		}
	}
	return nil
}

func wrapJSExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiled struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (c *jsCompiled) Evaluate(ctx EvalContext) (any, error) {
	return c.evaluator.run(ctx, c.expression, c.program)
}

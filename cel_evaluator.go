package redux

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	jsoniter "github.com/json-iterator/go"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache reuses checked programs across selectors.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes registry functions through call(name, ...).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

// celEvaluator runs selector expressions with cel-go. Snapshots that are
// not map[string]any are converted through their JSON form so CEL sees
// plain maps and lists.
type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx EvalContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEngineError("cel", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	state, err := celState(ctx.State)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, err)
	}
	program, err := e.loadOrCompile(expression, state)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, err)
	}
	out, _, err := program.program.Eval(e.activation(ctx, state))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, err)
	}
	return out.Value(), nil
}

// Compile defers CEL type checking to the first evaluation because the
// declared variables depend on the snapshot's top-level keys.
func (e *celEvaluator) Compile(expression string) (CompiledExpr, error) {
	if expression == "" {
		return nil, wrapEngineError("cel", fmt.Errorf("expression must not be empty"))
	}
	return &celCompiled{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, state any) (*celProgram, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get("cel:" + expression); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}
	env, err := e.buildEnv(state)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	bundle := &celProgram{env: env, program: prg}
	if e.cache != nil {
		e.cache.Set("cel:"+expression, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(state any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("state", celgo.DynType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.DynType},
			celgo.DynType,
			celgo.FunctionBinding(functions.FunctionOp(e.callBinding())),
		)))
	}
	if snapshot, ok := state.(map[string]any); ok {
		for key := range snapshot {
			if key == "state" || key == "now" || key == "args" {
				continue
			}
			opts = append(opts, celgo.Variable(key, celgo.DynType))
		}
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx EvalContext, state any) map[string]any {
	activation := map[string]any{}
	if snapshot, ok := state.(map[string]any); ok {
		for key, value := range snapshot {
			activation[key] = value
		}
	}
	activation["state"] = state
	activation["now"] = ctx.timestamp()
	activation["args"] = ctx.Args
	return activation
}

func (e *celEvaluator) callBinding() func(values ...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("redux: call requires a function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("redux: call name must be a string")
		}
		args := make([]any, 0, len(values)-1)
		for _, val := range values[1:] {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

type celCompiled struct {
	evaluator  *celEvaluator
	expression string
}

func (c *celCompiled) Evaluate(ctx EvalContext) (any, error) {
	return c.evaluator.Evaluate(ctx, c.expression)
}

// celState normalizes a snapshot into JSON-shaped values CEL can adapt.
func celState(state any) (any, error) {
	switch state.(type) {
	case nil, map[string]any, []any, string, bool, float64, int, int64:
		return state, nil
	}
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var out any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}

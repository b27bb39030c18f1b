package redux

import "github.com/goliatone/go-redux/pkg/activity"

// Option configures a Proxy.
type Option func(*proxyConfig)

type proxyConfig struct {
	storeID       string
	logger        Logger
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	evalLogger    EvaluatorLogger
	activityHooks activity.Hooks
	activityCfg   activity.Config
	comparator    Comparator
}

func applyOptions(opts []Option) proxyConfig {
	cfg := proxyConfig{activityCfg: activity.Config{Enabled: true}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c *proxyConfig) log() Logger {
	if c.logger != nil {
		return c.logger
	}
	return noopLogger{}
}

func (c *proxyConfig) evaluationLogger() EvaluatorLogger {
	if c.evalLogger != nil {
		return c.evalLogger
	}
	return noopEvaluatorLogger{}
}

func (c *proxyConfig) equality() Comparator {
	if c.comparator != nil {
		return c.comparator
	}
	return DefaultComparator
}

// WithStoreID names the proxy in logs and activity events.
func WithStoreID(id string) Option {
	return func(cfg *proxyConfig) {
		cfg.storeID = id
	}
}

// WithEvaluator sets the engine used by expression selectors that do not
// carry their own.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *proxyConfig) {
		cfg.evaluator = e
	}
}

// WithDefaultComparator replaces DefaultComparator for Select calls that
// pass a nil comparator.
func WithDefaultComparator(cmp Comparator) Option {
	return func(cfg *proxyConfig) {
		cfg.comparator = cmp
	}
}

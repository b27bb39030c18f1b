package redux

import "time"

// EvaluatorLogEvent describes one expression selector evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// SlogEvaluatorLogger forwards evaluation events to a Logger at debug level,
// or warn level when the evaluation failed.
func SlogEvaluatorLogger(logger Logger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		if event.Err != nil {
			logger.Warn("redux: expression selector failed",
				"engine", event.Engine, "expr", event.Expr,
				"duration", event.Duration, "error", event.Err)
			return
		}
		logger.Debug("redux: expression selector evaluated",
			"engine", event.Engine, "expr", event.Expr, "duration", event.Duration)
	})
}

// WithEvaluatorLogger attaches an evaluator logger to the proxy.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *proxyConfig) {
		if logger == nil {
			cfg.evalLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evalLogger = logger
	}
}

package redux

// Logger is the structured logging surface used by the proxy. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// WithLogger attaches logger to the proxy. A nil logger disables logging.
func WithLogger(logger Logger) Option {
	return func(cfg *proxyConfig) {
		cfg.logger = logger
	}
}

package middleware

import (
	"errors"
	"time"

	redux "github.com/goliatone/go-redux"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig configures the Prometheus middleware.
type MetricsConfig struct {
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
	Buckets     []float64
	// Registry defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
	// Logger receives registration failures from Metrics.
	Logger redux.Logger
}

// MetricsOption configures the Prometheus middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace (default "redux").
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels adds constant labels to every metric, e.g. a store id.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the registerer the collectors are added to.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// WithMetricsLogger sets the logger Metrics reports registration failures to.
func WithMetricsLogger(logger redux.Logger) MetricsOption {
	return func(c *MetricsConfig) {
		c.Logger = logger
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "redux",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collectors holds the metrics recorded by the Metrics middleware.
type Collectors struct {
	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
}

// NewCollectors creates and registers the dispatch metrics. Collectors that
// are already registered with an identical description are reused.
func NewCollectors(opts ...MetricsOption) (*Collectors, error) {
	return newCollectors(resolveMetricsConfig(opts))
}

func resolveMetricsConfig(opts []MetricsOption) MetricsConfig {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = prometheus.DefBuckets
	}
	return cfg
}

func newCollectors(cfg MetricsConfig) (*Collectors, error) {
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Subsystem:   cfg.Subsystem,
		Name:        "actions_total",
		Help:        "Total number of dispatched actions by type and status",
		ConstLabels: cfg.ConstLabels,
	}, []string{"type", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   cfg.Namespace,
		Subsystem:   cfg.Subsystem,
		Name:        "action_duration_seconds",
		Help:        "Dispatch duration in seconds",
		ConstLabels: cfg.ConstLabels,
		Buckets:     cfg.Buckets,
	}, []string{"type"})

	var err error
	if total, err = register(cfg.Registry, total); err != nil {
		return nil, err
	}
	if duration, err = register(cfg.Registry, duration); err != nil {
		return nil, err
	}
	return &Collectors{ActionsTotal: total, ActionDuration: duration}, nil
}

func register[C prometheus.Collector](registry prometheus.Registerer, collector C) (C, error) {
	if err := registry.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

// MetricsMiddleware records every dispatch on c.
func MetricsMiddleware[S any](c *Collectors) redux.Middleware[S] {
	return func(redux.MiddlewareAPI[S]) func(redux.DispatchFunc) redux.DispatchFunc {
		return func(next redux.DispatchFunc) redux.DispatchFunc {
			if c == nil {
				return next
			}
			return func(action redux.Action) (any, error) {
				start := time.Now()
				result, err := next(action)
				status := "success"
				if err != nil {
					status = "error"
				}
				c.ActionsTotal.WithLabelValues(action.Type, status).Inc()
				c.ActionDuration.WithLabelValues(action.Type).Observe(time.Since(start).Seconds())
				return result, err
			}
		}
	}
}

// Metrics builds collectors from opts and returns middleware recording
// redux_actions_total{type,status} and redux_action_duration_seconds{type}.
// When registration fails the error is logged to the WithMetricsLogger
// logger and the middleware passes actions through unrecorded. Use
// NewCollectors to handle the error directly.
func Metrics[S any](opts ...MetricsOption) redux.Middleware[S] {
	cfg := resolveMetricsConfig(opts)
	c, err := newCollectors(cfg)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Error("redux: metrics registration failed, dispatches will not be recorded",
				"namespace", cfg.Namespace, "subsystem", cfg.Subsystem, "error", err)
		}
		return MetricsMiddleware[S](nil)
	}
	return MetricsMiddleware[S](c)
}

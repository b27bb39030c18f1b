package middleware

import (
	"context"

	redux "github.com/goliatone/go-redux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/go-redux/pkg/middleware"

// TracingOption configures the tracing middleware.
type TracingOption func(*tracingConfig)

type tracingConfig struct {
	tracer  trace.Tracer
	storeID string
}

// WithTracer sets the tracer. Defaults to the global provider's tracer.
func WithTracer(tracer trace.Tracer) TracingOption {
	return func(c *tracingConfig) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithTracerProvider takes the tracer from provider.
func WithTracerProvider(provider trace.TracerProvider) TracingOption {
	return func(c *tracingConfig) {
		if provider != nil {
			c.tracer = provider.Tracer(tracerName)
		}
	}
}

// WithSpanStoreID tags every span with redux.store_id.
func WithSpanStoreID(id string) TracingOption {
	return func(c *tracingConfig) {
		c.storeID = id
	}
}

// Tracing wraps every dispatch in a span named "redux.dispatch <type>".
// Failed dispatches record the error and set the span status.
func Tracing[S any](opts ...TracingOption) redux.Middleware[S] {
	cfg := tracingConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}

	return func(redux.MiddlewareAPI[S]) func(redux.DispatchFunc) redux.DispatchFunc {
		return func(next redux.DispatchFunc) redux.DispatchFunc {
			return func(action redux.Action) (any, error) {
				attrs := []attribute.KeyValue{attribute.String("redux.action.type", action.Type)}
				if cfg.storeID != "" {
					attrs = append(attrs, attribute.String("redux.store_id", cfg.storeID))
				}
				_, span := cfg.tracer.Start(context.Background(), "redux.dispatch "+action.Type,
					trace.WithSpanKind(trace.SpanKindInternal),
					trace.WithAttributes(attrs...),
				)
				defer span.End()

				result, err := next(action)
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					return result, err
				}
				span.SetStatus(codes.Ok, "")
				return result, nil
			}
		}
	}
}

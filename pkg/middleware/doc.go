// Package middleware provides dispatch middleware for redux stores: structured
// logging, Prometheus metrics, OpenTelemetry spans and activity events.
//
// Each constructor is generic over the snapshot type so it can be passed
// straight to Proxy.Configure or redux.ApplyMiddleware:
//
//	proxy.Configure(reducer, initial, []redux.Middleware[State]{
//		middleware.Logging[State](logger),
//		middleware.Metrics[State](middleware.WithRegistry(reg)),
//	}, nil)
package middleware

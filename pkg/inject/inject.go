// Package inject registers proxies and binders with a samber/do injector so
// consumers can depend on a proxy before any store exists.
package inject

import (
	"fmt"

	redux "github.com/goliatone/go-redux"
	"github.com/samber/do/v2"
)

// ProvideProxy registers a lazily built, unconfigured *redux.Proxy[S]. When
// the injector holds a redux.Logger it is attached ahead of opts.
func ProvideProxy[S any](i do.Injector, opts ...redux.Option) {
	do.Provide(i, proxyProvider[S](opts))
}

// ProvideNamedProxy is ProvideProxy for one of several proxies of the same
// snapshot type.
func ProvideNamedProxy[S any](i do.Injector, name string, opts ...redux.Option) {
	do.ProvideNamed(i, name, proxyProvider[S](opts))
}

// ProvideConfiguredProxy registers a proxy that configures its own store on
// first use.
func ProvideConfiguredProxy[S any](i do.Injector, reducer redux.Reducer[S], initial S, middleware []redux.Middleware[S], enhancers []redux.Enhancer[S], opts ...redux.Option) {
	build := proxyProvider[S](opts)
	do.Provide(i, func(i do.Injector) (*redux.Proxy[S], error) {
		proxy, err := build(i)
		if err != nil {
			return nil, err
		}
		if err := proxy.Configure(reducer, initial, middleware, enhancers); err != nil {
			return nil, fmt.Errorf("inject: configure proxy: %w", err)
		}
		return proxy, nil
	})
}

// InvokeProxy resolves the proxy registered by ProvideProxy.
func InvokeProxy[S any](i do.Injector) (*redux.Proxy[S], error) {
	return do.Invoke[*redux.Proxy[S]](i)
}

// InvokeNamedProxy resolves a proxy registered by ProvideNamedProxy.
func InvokeNamedProxy[S any](i do.Injector, name string) (*redux.Proxy[S], error) {
	return do.InvokeNamed[*redux.Proxy[S]](i, name)
}

// ProvideBinder registers a *redux.Binder initialized with the proxy of
// snapshot type S.
func ProvideBinder[S any](i do.Injector) {
	do.Provide(i, func(i do.Injector) (*redux.Binder, error) {
		proxy, err := InvokeProxy[S](i)
		if err != nil {
			return nil, err
		}
		binder := redux.NewBinder()
		if err := binder.Initialize(proxy); err != nil {
			return nil, err
		}
		return binder, nil
	})
}

func proxyProvider[S any](opts []redux.Option) do.Provider[*redux.Proxy[S]] {
	return func(i do.Injector) (*redux.Proxy[S], error) {
		all := make([]redux.Option, 0, len(opts)+1)
		if logger, err := do.Invoke[redux.Logger](i); err == nil && logger != nil {
			all = append(all, redux.WithLogger(logger))
		}
		all = append(all, opts...)
		return redux.New[S](all...), nil
	}
}

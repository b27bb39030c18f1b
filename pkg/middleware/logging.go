package middleware

import (
	"time"

	redux "github.com/goliatone/go-redux"
)

// Logging logs every dispatch at debug level and failures at error level.
// A nil logger makes the middleware a pass-through.
func Logging[S any](logger redux.Logger) redux.Middleware[S] {
	return func(redux.MiddlewareAPI[S]) func(redux.DispatchFunc) redux.DispatchFunc {
		return func(next redux.DispatchFunc) redux.DispatchFunc {
			if logger == nil {
				return next
			}
			return func(action redux.Action) (any, error) {
				start := time.Now()
				result, err := next(action)
				if err != nil {
					logger.Error("redux: dispatch failed",
						"action", action.Type,
						"duration", time.Since(start),
						"error", err,
					)
					return result, err
				}
				logger.Debug("redux: action dispatched",
					"action", action.Type,
					"duration", time.Since(start),
				)
				return result, nil
			}
		}
	}
}

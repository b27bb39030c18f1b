package redux

import "github.com/goliatone/go-redux/pkg/activity"

// WithActivityHooks attaches hooks notified when the proxy adopts a store or
// replaces its reducer. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Clone()
	return func(cfg *proxyConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig overrides the emitter defaults (enabled flag, channel).
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *proxyConfig) {
		cfg.activityCfg = config
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (p *Proxy[S]) ActivityHooks() activity.Hooks {
	if p == nil {
		return nil
	}
	return p.cfg.activityHooks.Clone()
}

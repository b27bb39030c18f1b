package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	redux "github.com/goliatone/go-redux"
	"github.com/goliatone/go-redux/pkg/activity"
)

const envPrefix = "REDUXCTL_"

// Config is read from REDUXCTL_* environment variables.
type Config struct {
	LogLevel     string          `env:"LOG_LEVEL" envDefault:"info"`
	Engine       string          `env:"ENGINE" envDefault:"expr"`
	DevtoolsAddr string          `env:"DEVTOOLS_ADDR" envDefault:"127.0.0.1:7070"`
	StoreID      string          `env:"STORE_ID" envDefault:"reduxctl"`
	Activity     activity.Config `envPrefix:"ACTIVITY_"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func evaluatorFor(engine string) (redux.Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "expr":
		return redux.NewExprEvaluator(), nil
	case "cel":
		return redux.NewCELEvaluator(), nil
	case "js":
		if !redux.JSEvaluatorAvailable() {
			return nil, fmt.Errorf("engine js requires a binary built with -tags js_eval")
		}
		return redux.NewJSEvaluator(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
}

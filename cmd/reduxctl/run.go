package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	redux "github.com/goliatone/go-redux"
	"github.com/goliatone/go-redux/pkg/activity"
	"github.com/goliatone/go-redux/pkg/devtools"
	"github.com/goliatone/go-redux/pkg/middleware"
	"github.com/goliatone/go-redux/pkg/persist"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type State = map[string]any

func runCmd() *cobra.Command {
	var (
		serve  bool
		engine string
	)
	cmd := &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Replay a script against a fresh store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if engine != "" {
				cfg.Engine = engine
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}
			script, err := loadScript(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			registry := prometheus.NewRegistry()
			session, err := startSession(ctx, script, cfg, sessionDeps{
				out:      cmd.OutOrStdout(),
				logger:   logger,
				registry: registry,
			})
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Replay(); err != nil {
				return err
			}
			if !serve {
				return nil
			}
			return serveDevtools(ctx, cfg.DevtoolsAddr, session.proxy, registry, logger)
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "keep running and expose the devtools API")
	cmd.Flags().StringVar(&engine, "engine", "", "expression engine (overrides REDUXCTL_ENGINE)")
	return cmd
}

type sessionDeps struct {
	out      io.Writer
	logger   *slog.Logger
	registry prometheus.Registerer
}

// session owns the proxy, its persistence and the watch subscriptions of a
// single script run.
type session struct {
	script  Script
	proxy   *redux.Proxy[State]
	out     io.Writer
	outMu   sync.Mutex
	logger  *slog.Logger
	subs    []redux.Subscription
	closers []io.Closer
}

func startSession(ctx context.Context, script Script, cfg Config, deps sessionDeps) (*session, error) {
	evaluator, err := evaluatorFor(cfg.Engine)
	if err != nil {
		return nil, err
	}
	hooks := activity.Hooks{activity.HookFunc(func(_ context.Context, event activity.Event) error {
		deps.logger.Debug("activity", "verb", event.Verb, "object", event.ObjectID, "channel", event.Channel)
		return nil
	})}

	s := &session{script: script, out: deps.out, logger: deps.logger}
	s.proxy = redux.New[State](
		redux.WithLogger(deps.logger),
		redux.WithStoreID(cfg.StoreID),
		redux.WithEvaluator(evaluator),
		redux.WithActivityHooks(hooks),
		redux.WithActivityConfig(cfg.Activity),
	)

	mw := []redux.Middleware[State]{
		middleware.Logging[State](deps.logger),
		middleware.Tracing[State](middleware.WithSpanStoreID(cfg.StoreID)),
		middleware.Activity[State](hooks, middleware.WithActivityStoreID(cfg.StoreID), middleware.WithActivityLogger(deps.logger)),
	}
	if deps.registry != nil {
		mw = append(mw, middleware.Metrics[State](
			middleware.WithRegistry(deps.registry),
			middleware.WithConstLabels(prometheus.Labels{"store": cfg.StoreID}),
			middleware.WithMetricsLogger(deps.logger),
		))
	}

	initial := State(script.Initial)
	if script.Persist == nil {
		err = s.proxy.Configure(scriptReducer, initial, mw, nil)
	} else {
		err = s.configurePersisted(ctx, initial, mw)
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	for _, w := range script.Watch {
		label := w.label()
		s.subs = append(s.subs, s.proxy.Select(w.selector(), nil).Watch(ctx, func(value any) {
			s.print(label, value)
		}))
	}
	return s, nil
}

func (s *session) configurePersisted(ctx context.Context, initial State, mw []redux.Middleware[State]) error {
	target := s.script.Persist
	key, err := target.ref().Identifier()
	if err != nil {
		return err
	}

	var backend persist.Backend
	switch target.Driver {
	case "sqlite":
		db, err := persist.OpenSQLite(target.Path)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, db)
		backend = db
	default:
		backend = persist.NewMemoryBackend()
	}

	persister, err := persist.NewPersister[State](backend, key, persist.WithLogger[State](s.logger))
	if err != nil {
		return err
	}
	if err := persist.Configure(ctx, persister, s.proxy, scriptReducer, initial, mw, nil); err != nil {
		return err
	}
	s.subs = append(s.subs, persister.Attach(ctx, s.proxy))
	return nil
}

// Replay dispatches every scripted action in order and prints the final
// state.
func (s *session) Replay() error {
	for i, action := range s.script.Actions {
		if _, err := s.proxy.Dispatch(action); err != nil {
			return fmt.Errorf("actions[%d] %s: %w", i, action.Type, err)
		}
	}
	state, err := s.proxy.GetState()
	if err != nil {
		return err
	}
	s.print("state", state)
	return nil
}

func (s *session) print(label string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("encode value", "label", label, "error", err)
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, "%s = %s\n", label, data)
}

func (s *session) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("close", "error", err)
		}
	}
	s.closers = nil
}

func serveDevtools(ctx context.Context, addr string, proxy *redux.Proxy[State], registry *prometheus.Registry, logger *slog.Logger) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Mount("/", devtools.New(proxy, devtools.WithLogger(logger)).Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("devtools listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

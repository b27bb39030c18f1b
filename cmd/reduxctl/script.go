package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	redux "github.com/goliatone/go-redux"
	"github.com/goliatone/go-redux/pkg/persist"
	"gopkg.in/yaml.v3"
)

// Script describes one reduxctl run.
type Script struct {
	Initial map[string]any `yaml:"initial"`
	Persist *PersistSpec   `yaml:"persist,omitempty"`
	Watch   []WatchSpec    `yaml:"watch,omitempty"`
	Actions []redux.Action `yaml:"actions"`
}

// PersistSpec enables snapshot persistence for the run.
type PersistSpec struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
	Domain string `yaml:"domain"`
	Scope  string `yaml:"scope,omitempty"`
	ID     string `yaml:"id,omitempty"`
}

// WatchSpec prints a selected value every time it changes. Exactly one of
// Path and Expr must be set.
type WatchSpec struct {
	Name string `yaml:"name"`
	Path string `yaml:"path,omitempty"`
	Expr string `yaml:"expr,omitempty"`
}

func (w WatchSpec) selector() redux.Selector {
	if w.Expr != "" {
		return redux.Expr(w.Expr)
	}
	return redux.DottedPath(w.Path)
}

func (w WatchSpec) label() string {
	switch {
	case w.Name != "":
		return w.Name
	case w.Expr != "":
		return w.Expr
	default:
		return w.Path
	}
}

func loadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return parseScript(data)
}

func parseScript(data []byte) (Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	if script.Initial == nil {
		script.Initial = map[string]any{}
	}
	return script, script.validate()
}

func (s Script) validate() error {
	var errs []error
	for i, action := range s.Actions {
		if strings.TrimSpace(action.Type) == "" {
			errs = append(errs, fmt.Errorf("actions[%d]: type is required", i))
		}
	}
	for i, w := range s.Watch {
		if (w.Path == "") == (w.Expr == "") {
			errs = append(errs, fmt.Errorf("watch[%d]: set exactly one of path or expr", i))
		}
	}
	if s.Persist != nil {
		switch s.Persist.Driver {
		case "memory":
		case "sqlite":
			if s.Persist.Path == "" {
				errs = append(errs, errors.New("persist: sqlite driver requires a path"))
			}
		default:
			errs = append(errs, fmt.Errorf("persist: unknown driver %q", s.Persist.Driver))
		}
		if _, err := s.Persist.ref().Identifier(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p PersistSpec) ref() persist.Ref {
	return persist.Ref{Domain: p.Domain, Scope: p.Scope, ID: p.ID}
}

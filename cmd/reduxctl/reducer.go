package main

import (
	"fmt"
	"maps"

	redux "github.com/goliatone/go-redux"
	"github.com/goliatone/go-redux/layering"
)

// Action types understood by the script reducer. Payloads are maps with a
// dotted "path" and, for set and merge, a "value".
const (
	ActionSet    = "set"
	ActionMerge  = "merge"
	ActionDelete = "delete"
)

func scriptReducer(state map[string]any, action redux.Action) map[string]any {
	payload, ok := action.Payload.(map[string]any)
	if !ok {
		return state
	}
	path := redux.ParsePath(fmt.Sprint(payload["path"]))
	if payload["path"] == nil || len(path) == 0 {
		return state
	}

	switch action.Type {
	case ActionSet:
		return setIn(state, path, payload["value"])
	case ActionMerge:
		value, ok := payload["value"].(map[string]any)
		if !ok {
			return setIn(state, path, payload["value"])
		}
		current, _ := redux.GetIn(state, path)
		existing, _ := current.(map[string]any)
		return setIn(state, path, layering.MergeLayers(value, existing))
	case ActionDelete:
		next, _ := deleteIn(state, path)
		return next
	default:
		return state
	}
}

// setIn returns a copy of state with value at path. Maps along the path are
// copied; missing ones are created.
func setIn(state map[string]any, path redux.Path, value any) map[string]any {
	next := maps.Clone(state)
	if next == nil {
		next = map[string]any{}
	}
	key := fmt.Sprint(path[0])
	if len(path) == 1 {
		next[key] = value
		return next
	}
	child, _ := next[key].(map[string]any)
	next[key] = setIn(child, path[1:], value)
	return next
}

// deleteIn reports whether anything was removed; state is returned as is
// when the path does not exist.
func deleteIn(state map[string]any, path redux.Path) (map[string]any, bool) {
	key := fmt.Sprint(path[0])
	current, ok := state[key]
	if !ok {
		return state, false
	}
	if len(path) == 1 {
		next := maps.Clone(state)
		delete(next, key)
		return next, true
	}
	child, ok := current.(map[string]any)
	if !ok {
		return state, false
	}
	updated, removed := deleteIn(child, path[1:])
	if !removed {
		return state, false
	}
	next := maps.Clone(state)
	next[key] = updated
	return next, true
}

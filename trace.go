package redux

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// PathTrace records how a path lookup progressed through a snapshot, one
// step per segment, so tooling can explain an absent selection.
type PathTrace struct {
	Path  string     `json:"path"`
	Steps []PathStep `json:"steps"`
	Found bool       `json:"found"`
	Value any        `json:"value,omitempty"`
}

// PathStep details a single segment of a traced lookup.
type PathStep struct {
	Segment string `json:"segment"`
	Kind    string `json:"kind"`
	Found   bool   `json:"found"`
}

// TracePath walks value like GetIn while recording every step. The walk
// stops at the first missing segment.
func TracePath(value any, path Path) PathTrace {
	trace := PathTrace{Path: path.String(), Steps: make([]PathStep, 0, len(path))}
	current := value
	for i, segment := range path {
		if p, ok := current.(Pathable); ok {
			out, found := p.GetIn(path[i:])
			trace.Steps = append(trace.Steps, PathStep{
				Segment: path[i:].String(),
				Kind:    "pathable",
				Found:   found,
			})
			if found {
				trace.Found = true
				trace.Value = out
			}
			return trace
		}
		next, found := step(current, segment)
		trace.Steps = append(trace.Steps, PathStep{
			Segment: fmt.Sprint(segment),
			Kind:    kindOf(current),
			Found:   found,
		})
		if !found {
			return trace
		}
		current = next
	}
	trace.Found = true
	trace.Value = current
	return trace
}

func kindOf(value any) string {
	if value == nil {
		return "nil"
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv.Kind().String()
}

// ToJSON serialises the trace for logging or transport.
func (t PathTrace) ToJSON() ([]byte, error) {
	type alias PathTrace
	return json.Marshal(alias(t))
}

// PathTraceFromJSON decodes a payload produced by ToJSON.
func PathTraceFromJSON(payload []byte) (PathTrace, error) {
	type alias PathTrace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return PathTrace{}, err
	}
	return PathTrace(trace), nil
}

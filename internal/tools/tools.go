// Package tools binds the directory, tracker and archive operations
// into capabilities the orchestrator can expose to the model. Each
// binding decodes the loosely-typed argument map at the boundary and
// calls a typed client method.
package tools

import (
	"fmt"

	"github.com/briefops/briefops/internal/archive"
	"github.com/briefops/briefops/internal/directory"
	"github.com/briefops/briefops/internal/orchestrator"
	"github.com/briefops/briefops/internal/tracker"
)

// All assembles the full capability set. Nil backends are skipped so a
// deployment without, say, an archive still gets the rest.
func All(dir directory.Source, trk *tracker.Client, arc *archive.Store) []*orchestrator.Capability {
	var caps []*orchestrator.Capability
	if dir != nil {
		caps = append(caps, Directory(dir)...)
	}
	if trk != nil {
		caps = append(caps, Tracker(trk)...)
	}
	if arc != nil {
		caps = append(caps, Archive(arc)...)
	}
	return caps
}

// -- argument decoding --

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", name)
	}
	if s == "" {
		return "", fmt.Errorf("parameter %q must not be empty", name)
	}
	return s, nil
}

func optStringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", name)
	}
	return s, nil
}

// optIntArg accepts JSON numbers and numeric strings; models are not
// consistent about which they send.
func optIntArg(args map[string]any, name string, def int64) (int64, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		var parsed int64
		if _, err := fmt.Sscanf(n, "%d", &parsed); err != nil {
			return 0, fmt.Errorf("parameter %q must be an integer", name)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("parameter %q must be an integer", name)
	}
}

func optFloatArg(args map[string]any, name string, def float64) (float64, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("parameter %q must be a number", name)
	}
}

func optBoolArg(args map[string]any, name string) (bool, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %q must be a boolean", name)
	}
	return b, nil
}

func optStringSliceArg(args map[string]any, name string) ([]string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be an array of strings", name)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be an array of strings", name)
		}
		out = append(out, s)
	}
	return out, nil
}

func objectArg(args map[string]any, name string) (map[string]any, error) {
	v, ok := args[name]
	if !ok {
		return nil, fmt.Errorf("missing required parameter %q", name)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be an object", name)
	}
	return m, nil
}

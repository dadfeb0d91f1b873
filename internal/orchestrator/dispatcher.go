package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Result is the normalized outcome of one tool invocation. Expected per-tool
// failures are values, not errors: a failed invocation sets Err and the
// conversation loop continues with the failure visible to the model.
type Result struct {
	Value any
	Err   string
}

func (r Result) Failed() bool { return r.Err != "" }

// Payload serializes the result to the single text value carried by a
// tool-result message. Failures become {"error": "..."} envelopes.
func (r Result) Payload() string {
	if r.Failed() {
		env, _ := json.Marshal(map[string]string{"error": r.Err})
		return string(env)
	}
	switch v := r.Value.(type) {
	case nil:
		return "null"
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Dispatcher executes exactly one requested invocation against the registry
// and normalizes every outcome into a Result. Nothing a handler does can
// escape as an error; only the caller's context matters beyond that.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *Metrics
}

func NewDispatcher(registry *Registry, logger *slog.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger, metrics: metrics}
}

// Execute decodes rawArgs, resolves the capability, and invokes its handler.
// Outcomes, in order of checking:
//   - undecodable argument payload  -> invalid-arguments envelope
//   - name not in the registry      -> unknown-capability envelope
//   - handler error or panic        -> execution-error envelope with the message
//   - otherwise                     -> the handler's value unchanged
func (d *Dispatcher) Execute(ctx context.Context, name string, rawArgs json.RawMessage) Result {
	args, err := decodeArgs(rawArgs)
	if err != nil {
		d.logger.Error("tool arguments undecodable", "tool", name, "error", err)
		d.metrics.ObserveInvocation(name, "invalid_arguments")
		return Result{Err: fmt.Sprintf("invalid tool arguments: %s", err)}
	}

	cap, err := d.registry.Resolve(name)
	if err != nil {
		d.logger.Warn("unknown tool requested", "tool", name)
		d.metrics.ObserveInvocation(name, "unknown_capability")
		return Result{Err: fmt.Sprintf("tool %q not found", name)}
	}

	d.logger.Info("executing tool", "tool", name, "args", args)
	start := time.Now()

	value, err := d.invoke(ctx, cap, args)
	if err != nil {
		d.logger.Error("tool execution failed", "tool", name, "error", err, "duration", time.Since(start))
		d.metrics.ObserveInvocation(name, "error")
		return Result{Err: fmt.Sprintf("tool execution failed: %s", err)}
	}

	d.logger.Info("tool completed", "tool", name, "duration", time.Since(start))
	d.metrics.ObserveInvocation(name, "ok")
	return Result{Value: value}
}

// invoke runs the handler with panics converted to errors, so a misbehaving
// capability degrades to a failure envelope like any other handler error.
func (d *Dispatcher) invoke(ctx context.Context, cap *Capability, args map[string]any) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return cap.Handler(ctx, args)
}

// decodeArgs decodes the model's raw argument payload into a map. An empty
// payload means a zero-argument call.
func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

package provider

import (
	"context"
	"fmt"
)

// Router resolves provider/model refs against a registry and forwards
// completion requests with the bare model id the provider expects.
type Router struct {
	registry *Registry
}

func NewRouter(r *Registry) *Router {
	return &Router{registry: r}
}

func (r *Router) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	ref, err := ParseModelRef(req.Model)
	if err != nil {
		return nil, err
	}
	p, err := r.registry.GetForModel(ref)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", ref, err)
	}
	routed := *req
	routed.Model = ref.Model()
	return p.Complete(ctx, &routed)
}

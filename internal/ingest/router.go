package ingest

import (
	"context"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// KindRouter sends each batch to the submitter registered for its kind,
// falling back to Default.
type KindRouter struct {
	Default core.Submitter
	routes  map[core.ImportKind]core.Submitter
}

// NewKindRouter creates a router with a fallback submitter.
func NewKindRouter(fallback core.Submitter) *KindRouter {
	return &KindRouter{Default: fallback, routes: make(map[core.ImportKind]core.Submitter)}
}

// Route overrides the submitter for kind. Not safe to call concurrently
// with SubmitBatch; configure routes before serving.
func (r *KindRouter) Route(kind core.ImportKind, sub core.Submitter) *KindRouter {
	r.routes[kind] = sub
	return r
}

// SubmitBatch implements core.Submitter.
func (r *KindRouter) SubmitBatch(ctx context.Context, b core.Batch) (core.BatchResponse, error) {
	if sub, ok := r.routes[b.Kind]; ok {
		return sub.SubmitBatch(ctx, b)
	}
	return r.Default.SubmitBatch(ctx, b)
}

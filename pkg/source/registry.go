package source

import (
	"context"
	"time"

	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/utils/logging"
)

// Registry is the source router. It holds the statically configured sources
// in fixed priority order and maps a parsed intent onto the ordered set of
// source queries to dispatch.
type Registry struct {
	sources    []Source
	byName     map[model.SourceID]Source
	byCategory map[model.FactCategory][]Source
	policy     *Policy
}

type RegistryOption func(*Registry)

// WithPolicy attaches a routing policy that can veto (source, category)
// pairs before dispatch
func WithPolicy(policy *Policy) RegistryOption {
	return func(r *Registry) {
		r.policy = policy
	}
}

// New creates a registry. Source order is priority order: for each category
// the primary source comes first, fallbacks after.
func New(sources []Source, opts ...RegistryOption) *Registry {
	r := &Registry{
		sources:    sources,
		byName:     make(map[model.SourceID]Source),
		byCategory: make(map[model.FactCategory][]Source),
	}

	for _, s := range sources {
		r.byName[s.Name()] = s
		for _, c := range s.Categories() {
			r.byCategory[c] = append(r.byCategory[c], s)
		}
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Sources returns all registered sources in priority order
func (r *Registry) Sources() []Source {
	return r.sources
}

// Source returns the source registered under the given ID
func (r *Registry) Source(id model.SourceID) (Source, bool) {
	s, ok := r.byName[id]
	return s, ok
}

// Route maps an intent to the ordered source queries to dispatch, plus
// synthetic not_found facts for requested categories no source can answer.
// Pure apart from policy evaluation: same intent, same routing.
func (r *Registry) Route(ctx context.Context, intent model.Intent) ([]model.SourceQuery, []model.Fact) {
	var queries []model.SourceQuery
	var synthetic []model.Fact

	for _, category := range intent.Categories {
		routed := 0
		for _, s := range r.byCategory[category] {
			if r.policy != nil && r.policy.Denies(ctx, s.Name(), category) {
				logging.From(ctx).Debug("source denied by routing policy",
					"source", s.Name(), "category", category)
				continue
			}
			queries = append(queries, model.SourceQuery{
				Category: category,
				Source:   s.Name(),
				Entities: intent.Entities,
			})
			routed++
		}

		if routed == 0 {
			// Degrade gracefully instead of failing the whole request
			synthetic = append(synthetic, model.Fact{
				Category:    category,
				Source:      "router",
				RetrievedAt: time.Now(),
				Status:      model.StatusNotFound,
				Diagnostic:  "no source supports this category",
			})
		}
	}

	return queries, synthetic
}

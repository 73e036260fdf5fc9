// Package registry maps protected endpoints to payment requirements.
//
// Requirements are read from an external configuration store as JSON
// documents. The registry keeps an immutable snapshot behind an atomic
// pointer: lookups are pure reads against the current snapshot and a
// reload swaps the whole snapshot at once, so concurrent lookups never
// observe a half-loaded configuration.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/x402-labs/paygate"
	"github.com/x402-labs/paygate/validation"
)

// Source is a read-only listing of requirement documents. The registry
// needs nothing else from the configuration store.
type Source interface {
	List(ctx context.Context) ([]paygate.RequirementDoc, error)
}

// anyMethod is the lookup key segment for endpoints without a method.
const anyMethod = "*"

type snapshot struct {
	docs  []paygate.RequirementDoc
	byKey map[string]paygate.PaymentRequirement
}

// Registry is the price registry. Safe for concurrent use.
type Registry struct {
	source Source
	logger *slog.Logger
	snap   atomic.Pointer[snapshot]
}

// New creates a Registry reading from source. Call Load before serving
// lookups.
func New(source Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{source: source, logger: logger}
	r.snap.Store(&snapshot{byKey: map[string]paygate.PaymentRequirement{}})
	return r
}

// Load reads every document from the source, validates it, and atomically
// swaps the lookup snapshot. Documents that fail validation are skipped
// with a warning rather than poisoning the whole reload.
func (r *Registry) Load(ctx context.Context) error {
	docs, err := r.source.List(ctx)
	if err != nil {
		return fmt.Errorf("registry load: %w", err)
	}

	next := &snapshot{byKey: make(map[string]paygate.PaymentRequirement)}
	for _, doc := range docs {
		if err := validation.ValidateDoc(doc); err != nil {
			r.logger.Warn("skipping invalid requirement document", "resource", doc.Resource, "error", err)
			continue
		}
		next.docs = append(next.docs, doc)
		for _, ep := range doc.Endpoints {
			path := ep.Path
			if path == "" {
				path = doc.Resource
			}
			method := ep.Method
			if method == "" {
				method = anyMethod
			}
			key := method + " " + path
			if _, dup := next.byKey[key]; dup {
				r.logger.Warn("duplicate requirement for endpoint, keeping first", "key", key)
				continue
			}
			next.byKey[key] = ep
		}
	}

	r.snap.Store(next)
	r.logger.Info("price registry loaded", "documents", len(next.docs), "endpoints", len(next.byKey))
	return nil
}

// Lookup returns the active requirement for an endpoint. An exact
// method match wins over a method-agnostic entry. Returns
// paygate.ErrRequirementNotFound when the path is not priced at all.
func (r *Registry) Lookup(path, method string) (*paygate.PaymentRequirement, error) {
	snap := r.snap.Load()

	if req, ok := snap.byKey[method+" "+path]; ok {
		return &req, nil
	}
	if req, ok := snap.byKey[anyMethod+" "+path]; ok {
		return &req, nil
	}
	return nil, fmt.Errorf("%w: %s %s", paygate.ErrRequirementNotFound, method, path)
}

// Docs returns the documents in the current snapshot. The slice is shared
// with the snapshot and must be treated as read-only.
func (r *Registry) Docs() []paygate.RequirementDoc {
	return r.snap.Load().docs
}

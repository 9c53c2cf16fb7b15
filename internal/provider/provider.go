package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// Common provider registry errors.
var (
	ErrUnknownModel = errors.New("no provider registered for model")
	ErrNilGenerator = errors.New("generator cannot be nil")
)

// Generator is the boundary between the engine and an image provider.
// One call produces one outcome per requested image, in request order.
// Implementations must settle promptly once ctx is cancelled and must
// never report success with zero produced images.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error)
}

// Registry selects a Generator by model name prefix. Prefixes are
// matched longest-first so a more specific registration wins.
type Registry struct {
	prefixes map[string]Generator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{prefixes: make(map[string]Generator)}
}

// Register binds every model whose name starts with prefix to the given
// generator. Returns an error if the generator is nil.
func (r *Registry) Register(prefix string, gen Generator) error {
	if gen == nil {
		return ErrNilGenerator
	}
	r.prefixes[prefix] = gen
	return nil
}

// ForModel resolves the generator responsible for the given model name.
func (r *Registry) ForModel(model string) (Generator, error) {
	keys := make([]string, 0, len(r.prefixes))
	for prefix := range r.prefixes {
		keys = append(keys, prefix)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	for _, prefix := range keys {
		if strings.HasPrefix(model, prefix) {
			return r.prefixes[prefix], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
}

package detectors

import (
	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

// Registry holds the fixed set of pattern detectors built at startup. There is
// no runtime plugin loading; every detector is registered here.
type Registry struct {
	detectors []contracts.Detector
}

// NewRegistry creates a registry with an explicit detector set.
func NewRegistry(detectors ...contracts.Detector) *Registry {
	return &Registry{detectors: detectors}
}

// Default builds the standard detector set.
func Default(log *logger.Logger) *Registry {
	return NewRegistry(
		NewMomentum(log),
		NewMeanReversion(log),
		NewBreakout(log),
		NewVolumeSurge(log),
		NewRSIDivergence(log),
	)
}

// All returns the registered detectors in registration order.
func (r *Registry) All() []contracts.Detector {
	return r.detectors
}

// Names returns the registered detector names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.detectors))
	for i, d := range r.detectors {
		names[i] = d.Name()
	}
	return names
}

// Len returns the number of registered detectors.
func (r *Registry) Len() int {
	return len(r.detectors)
}

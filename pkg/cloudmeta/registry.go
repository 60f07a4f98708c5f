package cloudmeta

import "go.uber.org/zap"

// Registry resolves extractors by provider id. Lookup order is the
// registration order.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a registry of the given extractors.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// DefaultRegistry returns the supported providers in lookup order:
// ibm-classic, equinix, aws. When legacy profiles are given the equinix
// entry tries the legacy gather paths first.
func DefaultRegistry(legacy LegacyProfiles, logger *zap.Logger) *Registry {
	var equinix Extractor = NewEquinix(logger)
	if len(legacy) > 0 {
		equinix = NewEquinixLegacy(legacy, logger)
	}
	return NewRegistry(NewIBMClassic(logger), equinix, NewAWS(logger))
}

// Lookup returns the first extractor serving id. Legacy aliases are
// normalized before matching.
func (r *Registry) Lookup(id string) (Extractor, bool) {
	id = NormalizeProviderID(id)
	for _, e := range r.extractors {
		if e.ID() == id {
			return e, true
		}
	}
	return nil, false
}

// IDs returns the registered provider ids in lookup order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		ids = append(ids, e.ID())
	}
	return ids
}

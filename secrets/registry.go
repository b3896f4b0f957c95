package secrets

import (
	"encoding/json"
	"fmt"

	"github.com/puzpuzpuz/xsync/v2"
)

// Registry holds the set of provider candidates parsed from configuration
// and lazily initializes each one the first time a secret is fetched
// through it, so a provider nobody uses never opens a connection.
type Registry struct {
	candidates *xsync.MapOf[string, providerCandidate]
	providers  *xsync.MapOf[string, Provider]
}

// NewRegistryFromJSON parses a JSON array of provider descriptions (each
// with "type", "id" and provider-specific "config") into a Registry.
func NewRegistryFromJSON(rawJSON string) (*Registry, error) {
	var candidates []providerCandidate
	if err := json.Unmarshal([]byte(rawJSON), &candidates); err != nil {
		return nil, fmt.Errorf("unmarshalling secret providers: %w", err)
	}

	r := &Registry{
		candidates: xsync.NewMapOf[providerCandidate](),
		providers:  xsync.NewMapOf[Provider](),
	}
	for _, c := range candidates {
		if _, exists := r.candidates.Load(c.ID); exists {
			return nil, fmt.Errorf("duplicate secret provider ID: %s", c.ID)
		}
		r.candidates.Store(c.ID, c)
	}
	return r, nil
}

// Fetch resolves key from the provider identified by providerID,
// initializing that provider on first use.
func (r *Registry) Fetch(providerID, key string) (string, error) {
	if provider, ok := r.providers.Load(providerID); ok {
		return provider.Fetch(key)
	}

	candidate, ok := r.candidates.Load(providerID)
	if !ok {
		return "", fmt.Errorf("no secret provider registered with ID %q", providerID)
	}

	provider, err := candidate.initialize()
	if err != nil {
		return "", fmt.Errorf("initializing secret provider %s (type %s): %w", providerID, candidate.Type, err)
	}
	r.providers.Store(providerID, provider)

	return provider.Fetch(key)
}

package signedurl

import (
	"context"
	"fmt"

	"github.com/streamforge/uploadengine/secrets"
)

// SecretSource resolves the HMAC signing secret from somewhere other than
// plaintext configuration. KMSSecretSource and ProviderSecretSource are the
// two implementations this engine ships.
type SecretSource interface {
	Resolve(ctx context.Context) ([]byte, error)
}

// ProviderSecretSource resolves the secret through a secrets.Registry entry,
// e.g. an AWS SSM parameter holding the signing key.
type ProviderSecretSource struct {
	registry   *secrets.Registry
	providerID string
	key        string
}

// NewProviderSecretSource builds a source that fetches key from the
// provider identified by providerID within registry.
func NewProviderSecretSource(registry *secrets.Registry, providerID, key string) *ProviderSecretSource {
	return &ProviderSecretSource{registry: registry, providerID: providerID, key: key}
}

// Resolve fetches the secret. Secret providers in this engine are not
// context-cancellable (the underlying AWS SDK calls block synchronously),
// so ctx is only checked before the call is made.
func (s *ProviderSecretSource) Resolve(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, err := s.registry.Fetch(s.providerID, s.key)
	if err != nil {
		return nil, fmt.Errorf("signedurl: resolving secret from provider %s: %w", s.providerID, err)
	}
	return []byte(value), nil
}

// NewFromSource builds a Signer whose secret is resolved once from source,
// for configurations that keep the HMAC key out of plaintext config.
func NewFromSource(ctx context.Context, source SecretSource, cfg Config) (*Signer, error) {
	secret, err := source.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Secret = secret
	return New(cfg), nil
}

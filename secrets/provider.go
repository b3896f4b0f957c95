// Package secrets resolves byte secrets (HMAC signing keys, sink
// credentials) from pluggable external providers, so operators never need
// to put them in plaintext configuration.
package secrets

import (
	"encoding/json"
	"fmt"
)

// Provider is a source of secrets, keyed by an opaque string the caller
// agrees on with whatever backs the provider (an SSM parameter name, a
// vault path, ...). Implementations must be goroutine-safe.
type Provider interface {
	Fetch(key string) (string, error)
}

// providerCandidate is the not-yet-initialized description of a provider,
// as read from configuration. It is turned into a live Provider lazily, the
// first time one of its secrets is actually requested.
type providerCandidate struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Config json.RawMessage `json:"config"`
}

func (c providerCandidate) initialize() (Provider, error) {
	switch c.Type {
	case "aws-ssm":
		var conf AWSSSMProviderConfig
		if err := json.Unmarshal(c.Config, &conf); err != nil {
			return nil, fmt.Errorf("unmarshalling config for aws-ssm provider %s: %w", c.ID, err)
		}
		return NewAWSSSMProvider(conf)
	default:
		return nil, fmt.Errorf("unknown secret provider type %q for provider %s", c.Type, c.ID)
	}
}

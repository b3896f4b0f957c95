// Package jwkutil generates JWK key pairs used to sign and
// verify the bearer tokens accepted by the JWT auth validator.
package jwkutil

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// NewKeyPair generates a key pair for alg with key ID keyID, returning the
// private and public key sets in that order.
func NewKeyPair(keyID string, alg jwa.SignatureAlgorithm) (jwk.Set, jwk.Set, error) {
	switch alg {
	case jwa.HS256, jwa.HS384, jwa.HS512:
		key := make([]byte, 64)
		if _, err := rand.Read(key); err != nil {
			return nil, nil, fmt.Errorf("generating symmetric key: %w", err)
		}
		return newSymmetricKeyPair(keyID, key, alg)

	case jwa.ES256, jwa.ES384, jwa.ES512:
		var crv elliptic.Curve
		switch alg {
		case jwa.ES256:
			crv = elliptic.P256()
		case jwa.ES384:
			crv = elliptic.P384()
		default:
			crv = elliptic.P521()
		}
		priv, err := ecdsa.GenerateKey(crv, rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("generating EC private key: %w", err)
		}
		return newKeyPair(keyID, alg, priv)

	case jwa.PS256, jwa.PS384, jwa.PS512, jwa.RS256, jwa.RS384, jwa.RS512:
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, nil, fmt.Errorf("generating RSA private key: %w", err)
		}
		return newKeyPair(keyID, alg, priv)

	case jwa.EdDSA:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("generating Edwards private key: %w", err)
		}
		return newKeyPair(keyID, alg, priv)

	default:
		return nil, nil, fmt.Errorf("unsupported algorithm: %s", alg)
	}
}

func newSymmetricKeyPair(id string, key []byte, alg jwa.SignatureAlgorithm) (jwk.Set, jwk.Set, error) {
	skey, err := jwk.FromRaw(key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating symmetric key: %w", err)
	}
	if err := setAll(skey, id, alg); err != nil {
		return nil, nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(skey); err != nil {
		return nil, nil, fmt.Errorf("adding key to set: %w", err)
	}
	return set, set, nil
}

func newKeyPair(id string, alg jwa.SignatureAlgorithm, privKey any) (jwk.Set, jwk.Set, error) {
	privJWK, err := jwk.FromRaw(privKey)
	if err != nil {
		return nil, nil, fmt.Errorf("jwk.FromRaw: %w", err)
	}
	if err := setAll(privJWK, id, alg); err != nil {
		return nil, nil, err
	}

	pubJWK, err := jwk.PublicKeyOf(privJWK)
	if err != nil {
		return nil, nil, fmt.Errorf("jwk.PublicKeyOf: %w", err)
	}

	pubSet := jwk.NewSet()
	if err := pubSet.AddKey(pubJWK); err != nil {
		return nil, nil, fmt.Errorf("adding public key to set: %w", err)
	}
	privSet := jwk.NewSet()
	if err := privSet.AddKey(privJWK); err != nil {
		return nil, nil, fmt.Errorf("adding private key to set: %w", err)
	}
	return privSet, pubSet, nil
}

func setAll(key jwk.Key, id string, alg jwa.SignatureAlgorithm) error {
	for k, v := range map[string]any{
		jwk.AlgorithmKey: alg,
		jwk.KeyIDKey:     id,
		jwk.KeyUsageKey:  jwk.ForSignature,
	} {
		if err := key.Set(k, v); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return nil
}

// ValidSigningAlgorithms lists every algorithm NewKeyPair accepts.
var ValidSigningAlgorithms = []jwa.SignatureAlgorithm{
	jwa.HS256, jwa.HS384, jwa.HS512,
	jwa.RS256, jwa.RS384, jwa.RS512,
	jwa.PS256, jwa.PS384, jwa.PS512,
	jwa.ES256, jwa.ES384, jwa.ES512,
	jwa.EdDSA,
}

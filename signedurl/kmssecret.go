package signedurl

import (
	"context"
	"fmt"
	"time"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "google.golang.org/genproto/googleapis/cloud/kms/v1"

	"github.com/buildkite/roko"
)

// KMSSecretSource resolves the HMAC signing secret from an envelope that
// was encrypted with a Cloud KMS key, so the secret never needs to live in
// plaintext configuration. It is a convenience around Config.Secret, not a
// replacement for it.
type KMSSecretSource struct {
	client       *kms.KeyManagementClient
	keyName      string
	ciphertext   []byte
}

// NewKMSSecretSource builds a source that decrypts ciphertext with the KMS
// key identified by keyName (the full
// "projects/*/locations/*/keyRings/*/cryptoKeys/*" resource name).
func NewKMSSecretSource(client *kms.KeyManagementClient, keyName string, ciphertext []byte) *KMSSecretSource {
	return &KMSSecretSource{client: client, keyName: keyName, ciphertext: ciphertext}
}

// Resolve unwraps the secret, retrying every KMS Decrypt error (up to 10
// attempts, 5 seconds apart). This is not a storage write, so it does not
// fall under the engine's no-retry-to-storage policy.
func (s *KMSSecretSource) Resolve(ctx context.Context) ([]byte, error) {
	r := roko.NewRetrier(
		roko.WithMaxAttempts(10),
		roko.WithStrategy(roko.Constant(5*time.Second)),
	)

	return roko.DoFunc(ctx, r, func(*roko.Retrier) ([]byte, error) {
		resp, err := s.client.Decrypt(ctx, &kmspb.DecryptRequest{
			Name:       s.keyName,
			Ciphertext: s.ciphertext,
		})
		if err != nil {
			return nil, fmt.Errorf("signedurl: kms decrypt: %w", err)
		}
		return resp.Plaintext, nil
	})
}

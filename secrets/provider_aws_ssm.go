package secrets

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
)

// AWSSSMProviderConfig configures an AWSSSMProvider. RoleARN is optional;
// when empty the provider uses the ambient AWS credential chain.
type AWSSSMProviderConfig struct {
	RoleARN string `json:"role_arn"`
}

// AWSSSMProvider fetches secrets from AWS Systems Manager Parameter Store,
// always requesting decryption since the parameters this engine cares about
// (signing keys, sink credentials) are expected to be SecureString.
type AWSSSMProvider struct {
	ssmI *ssm.SSM
}

// NewAWSSSMProvider builds a provider from config, optionally assuming
// RoleARN via STS.
func NewAWSSSMProvider(config AWSSSMProviderConfig) (*AWSSSMProvider, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("initializing AWS session: %w", err)
	}

	awsCfg := &aws.Config{}
	if config.RoleARN != "" {
		awsCfg.Credentials = stscreds.NewCredentials(sess, config.RoleARN)
	}

	return &AWSSSMProvider{ssmI: ssm.New(sess, awsCfg)}, nil
}

func (p *AWSSSMProvider) Fetch(key string) (string, error) {
	out, err := p.ssmI.GetParameter(&ssm.GetParameterInput{
		Name:           aws.String(key),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("retrieving %s from SSM Parameter Store: %w", key, err)
	}
	return *out.Parameter.Value, nil
}

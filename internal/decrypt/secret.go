package decrypt

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog/log"
)

// SecretAPI is the part of the Secrets Manager client we call.
type SecretAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewSecretFernet
//
// Fetches the fernet key ring from AWS Secrets Manager and returns a
// Fernet decryptor over it. The secret string holds one or more keys
// separated by commas or newlines, primary key first.
//
// Keys are read once here; rotating the secret requires a restart.
func NewSecretFernet(ctx context.Context, api SecretAPI, secretID string) (*Fernet, error) {
	out, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("secretsmanager: get %s: %w", secretID, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secretsmanager: %s has no string value", secretID)
	}

	keys := strings.FieldsFunc(*out.SecretString, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	f, err := NewFernet(keys...)
	if err != nil {
		return nil, fmt.Errorf("secretsmanager: %s: %w", secretID, err)
	}

	log.Info().
		Str("secret_id", secretID).
		Int("keys", len(f.keys)).
		Msg("decryption keys loaded")
	return f, nil
}

package aws

import (
	"connectwork/src/config"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/tidwall/gjson"
)

type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadMpesaSecret overlays credentials stored as a JSON secret onto cfg.
// Keys absent from the secret keep their current value.
func LoadMpesaSecret(ctx context.Context, client SecretsAPI, secretID string, cfg *config.Mpesa) error {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return fmt.Errorf("secretsmanager: %w", err)
	}
	raw := aws.ToString(out.SecretString)
	if !gjson.Valid(raw) {
		return errors.New("secretsmanager: secret is not valid JSON")
	}
	overlay := func(path string, dst *string) {
		if v := gjson.Get(raw, path); v.Exists() && v.String() != "" {
			*dst = v.String()
		}
	}
	overlay("consumer_key", &cfg.ConsumerKey)
	overlay("consumer_secret", &cfg.ConsumerSecret)
	overlay("pass_key", &cfg.PassKey)
	overlay("short_code", &cfg.ShortCode)
	return nil
}

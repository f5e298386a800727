// Package secrets resolves the account password from a literal value,
// an environment variable or AWS Secrets Manager.
//
// A reference is one of:
//
//	env:NAME               the value of environment variable NAME
//	<secret-id>            a Secrets Manager secret; JSON secrets yield their "password" key
//	<secret-id>#<field>    a Secrets Manager JSON secret, reading field
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// DefaultField is the JSON key read from structured secrets.
const DefaultField = "password"

const envPrefix = "env:"

var (
	// ErrSecretNotFound is returned when the referenced secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretEmpty is returned when the secret or field holds no value.
	ErrSecretEmpty = errors.New("secret value is empty")

	// ErrAccessDenied is returned when the credentials may not read the secret.
	ErrAccessDenied = errors.New("access denied to secret")
)

// ManagerAPI is the subset of the Secrets Manager client used here.
type ManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver turns password references into values.
type Resolver struct {
	api    ManagerAPI
	lookup func(string) (string, bool)
}

// NewResolver builds a Resolver backed by the default AWS credential chain.
// The Secrets Manager client is only contacted for non-env references.
func NewResolver(ctx context.Context, region string) (*Resolver, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewResolverWithClient(secretsmanager.NewFromConfig(cfg)), nil
}

// NewResolverWithClient builds a Resolver over an existing client.
func NewResolverWithClient(api ManagerAPI) *Resolver {
	return &Resolver{api: api, lookup: os.LookupEnv}
}

// Password returns literal when ref is empty, otherwise the resolved reference.
func (r *Resolver) Password(ctx context.Context, literal, ref string) (string, error) {
	if ref == "" {
		return literal, nil
	}
	return r.Resolve(ctx, ref)
}

// Resolve returns the value named by ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	if name, ok := strings.CutPrefix(ref, envPrefix); ok {
		v, found := r.lookup(name)
		if !found {
			return "", fmt.Errorf("%w: environment variable %s", ErrSecretNotFound, name)
		}
		if v == "" {
			return "", fmt.Errorf("%w: environment variable %s", ErrSecretEmpty, name)
		}
		return v, nil
	}

	id, field, hasField := strings.Cut(ref, "#")
	if id == "" {
		return "", fmt.Errorf("%w: empty secret id", ErrSecretNotFound)
	}
	if r.api == nil {
		return "", errors.New("secrets manager client not configured")
	}

	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", id, classify(err))
	}
	raw := aws.ToString(out.SecretString)
	if raw == "" && len(out.SecretBinary) > 0 {
		raw = string(out.SecretBinary)
	}
	if raw == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretEmpty, id)
	}

	if !hasField {
		field = DefaultField
	}
	return extract(id, raw, field, hasField)
}

// extract reads field from a JSON object secret. Plain string secrets are
// returned whole unless a field was asked for explicitly.
func extract(id, raw, field string, required bool) (string, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		if required {
			return "", fmt.Errorf("secret %s is not a JSON object: %w", id, err)
		}
		return raw, nil
	}
	v, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("%w: %s has no field %q", ErrSecretNotFound, id, field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("secret %s field %q is not a string", id, field)
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s field %q", ErrSecretEmpty, id, field)
	}
	return s, nil
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException":
			return fmt.Errorf("%w: %w", ErrSecretNotFound, err)
		case "AccessDeniedException", "AccessDenied":
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}
	return err
}

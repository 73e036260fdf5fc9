package config

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// secretPrefix marks config values resolved through GCP Secret Manager.
// The remainder is a secret version resource name, e.g.
// sm://projects/my-project/secrets/facilitator-key/versions/latest
const secretPrefix = "sm://"

// IsSecretRef reports whether a config value is a Secret Manager reference.
func IsSecretRef(value string) bool {
	return strings.HasPrefix(value, secretPrefix)
}

// ResolveSecret returns the value itself, or, for sm:// references, the
// secret payload fetched from GCP Secret Manager.
func ResolveSecret(ctx context.Context, value string, opts ...option.ClientOption) (string, error) {
	if !IsSecretRef(value) {
		return value, nil
	}
	name := strings.TrimPrefix(value, secretPrefix)

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return "", fmt.Errorf("accessing secret %s: %w", name, err)
	}
	return string(result.GetPayload().GetData()), nil
}

// Package secrets resolves credentials from Google Secret Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrNotFound = errors.New("secret not found")

type accessFunc func(ctx context.Context, name string) ([]byte, error)

// Resolver reads the latest version of named secrets in one project.
type Resolver struct {
	project string
	access  accessFunc
	close   func() error
}

func NewResolver(ctx context.Context, project string, opts ...option.ClientOption) (*Resolver, error) {
	if project == "" {
		return nil, errors.New("secret manager project is required")
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}

	access := func(ctx context.Context, name string) ([]byte, error) {
		resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
		if err != nil {
			return nil, err
		}
		return resp.GetPayload().GetData(), nil
	}
	return &Resolver{project: project, access: access, close: client.Close}, nil
}

func newResolver(project string, access accessFunc) *Resolver {
	return &Resolver{project: project, access: access, close: func() error { return nil }}
}

func (r *Resolver) Close() error {
	return r.close()
}

// Name is the resource name of the latest version of secret.
func (r *Resolver) Name(secret string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.project, secret)
}

// Lookup returns the trimmed secret value. A missing secret or version
// wraps ErrNotFound.
func (r *Resolver) Lookup(ctx context.Context, secret string) (string, error) {
	data, err := r.access(ctx, r.Name(secret))
	if status.Code(err) == codes.NotFound {
		return "", fmt.Errorf("%w: %s", ErrNotFound, secret)
	}
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", secret, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Fill looks up every secret whose target is still empty. Missing secrets
// are skipped; any other failure stops the fill.
func (r *Resolver) Fill(ctx context.Context, targets map[string]*string) error {
	for secret, target := range targets {
		if target == nil || *target != "" {
			continue
		}
		value, err := r.Lookup(ctx, secret)
		if errors.Is(err, ErrNotFound) {
			slog.Debug("Secret not found, leaving empty", "secret", secret)
			continue
		}
		if err != nil {
			return err
		}
		*target = value
		slog.Debug("Loaded secret", "secret", secret)
	}
	return nil
}

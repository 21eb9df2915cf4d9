package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
)

// AppCredentials identify a GitHub App installation with read access to
// the plugin repository
type AppCredentials struct {
	AppID          int64
	PrivateKey     []byte
	InstallationID int64
}

// Configured reports whether any credential is set
func (c AppCredentials) Configured() bool {
	return c.AppID != 0 || len(c.PrivateKey) > 0 || c.InstallationID != 0
}

// AppAuth provides GitHub App installation authentication
type AppAuth struct {
	transport *ghinstallation.Transport
}

// NewAppAuth creates a new GitHub App authenticator
func NewAppAuth(creds AppCredentials) (*AppAuth, error) {
	if creds.AppID == 0 || creds.InstallationID == 0 || len(creds.PrivateKey) == 0 {
		return nil, errors.New("app id, installation id and private key are required")
	}
	transport, err := ghinstallation.New(
		http.DefaultTransport,
		creds.AppID,
		creds.InstallationID,
		creds.PrivateKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}

	return &AppAuth{transport: transport}, nil
}

// Token returns a valid installation access token. ghinstallation refreshes
// it when expired and is safe for concurrent use.
func (a *AppAuth) Token(ctx context.Context) (string, error) {
	token, err := a.transport.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get installation token: %w", err)
	}
	return token, nil
}

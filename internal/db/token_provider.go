package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// TokenProvider abstracts OAuth token acquisition for delegated-token mode
// when the platform does not mount a token file.
type TokenProvider interface {
	// GetToken acquires an OAuth access token accepted by Snowflake External OAuth.
	// Returns the token string and its expiry time.
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String returns a human-readable description for logging.
	// Should NOT include secrets. Example: "AzureServicePrincipal(tenant=xxx, client=yyy)"
	String() string
}

// OAuthProviderAzure selects Microsoft Entra ID as the token source.
const OAuthProviderAzure = "azure"

// NewTokenProvider builds the fallback token source named by config.OAuthProvider.
// Returns (nil, nil) when no provider is configured.
func NewTokenProvider(config *sfdash.ConnectionConfig) (TokenProvider, error) {
	switch strings.ToLower(strings.TrimSpace(config.OAuthProvider)) {
	case "":
		return nil, nil
	case OAuthProviderAzure:
		return newAzureTokenProvider(config)
	default:
		return nil, fmt.Errorf("oauth provider %q: %w", config.OAuthProvider, sfdash.ErrUnsupportedAuthMode)
	}
}

func newAzureTokenProvider(config *sfdash.ConnectionConfig) (TokenProvider, error) {
	if config.OAuthScope == "" {
		return nil, fmt.Errorf("oauth provider azure requires connection.oauth_scope: %w", sfdash.ErrInvalidConfig)
	}

	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		p, err := NewAzureServicePrincipalProvider(
			config.AzureTenantID,
			config.AzureClientID,
			config.AzureClientSecret,
			config.OAuthScope,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
		}
		return p, nil
	}

	p, err := NewAzureDefaultCredentialProvider(config.OAuthScope)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
	}
	return p, nil
}

// FileTokenProvider reads the platform-mounted session token.
type FileTokenProvider struct {
	path string
}

// NewFileTokenProvider creates a reader for the token file at path.
// An empty path means sfdash.DefaultTokenPath.
func NewFileTokenProvider(path string) *FileTokenProvider {
	if path == "" {
		path = sfdash.DefaultTokenPath
	}
	return &FileTokenProvider{path: path}
}

// Path returns the watched token file path.
func (p *FileTokenProvider) Path() string {
	return p.path
}

// Read returns the trimmed token content. present is false when the file does
// not exist, which is not an error. A present but empty file is an error.
func (p *FileTokenProvider) Read() (token string, present bool, err error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", true, fmt.Errorf("failed to read token file %s: %w", p.path, err)
	}

	token = strings.TrimSpace(string(data))
	if token == "" {
		return "", true, fmt.Errorf("token file %s is empty: %w", p.path, sfdash.ErrInvalidConfig)
	}
	return token, true, nil
}

func (p *FileTokenProvider) String() string {
	return "file:" + p.path
}

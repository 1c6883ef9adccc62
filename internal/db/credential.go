package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// tokenExpiryWarning is how close to expiry a provider token may be before a warning is logged.
const tokenExpiryWarning = 5 * time.Minute

// CredentialResolver selects the credential variant for the next acquisition.
//
// The token file is the mode signal: present means delegated-token mode with
// its content as the bearer token, absent means interactive SSO. When a
// fallback TokenProvider is configured an absent file selects delegated-token
// mode with a token from that provider instead.
//
// The file is checked on every call, so toggling it between calls changes the
// selected variant.
type CredentialResolver struct {
	config   *sfdash.ConnectionConfig
	file     *FileTokenProvider
	fallback TokenProvider
	logger   sfdash.Logger
}

// NewCredentialResolver creates a resolver for config, building the fallback
// token provider named by config.OAuthProvider.
func NewCredentialResolver(config *sfdash.ConnectionConfig, logger sfdash.Logger) (*CredentialResolver, error) {
	fallback, err := NewTokenProvider(config)
	if err != nil {
		return nil, err
	}
	return NewCredentialResolverWithProvider(config, fallback, logger), nil
}

// NewCredentialResolverWithProvider creates a resolver with an explicit
// fallback provider. A nil fallback keeps the file-or-interactive rule.
func NewCredentialResolverWithProvider(config *sfdash.ConnectionConfig, fallback TokenProvider, logger sfdash.Logger) *CredentialResolver {
	return &CredentialResolver{
		config:   config,
		file:     NewFileTokenProvider(config.TokenPath),
		fallback: fallback,
		logger:   logger,
	}
}

// TokenPath returns the token file path that selects delegated-token mode.
func (r *CredentialResolver) TokenPath() string {
	return r.file.Path()
}

// Resolve determines the credential for the next acquisition.
func (r *CredentialResolver) Resolve(ctx context.Context) (sfdash.Credential, error) {
	token, present, err := r.file.Read()
	if err != nil {
		return nil, err
	}
	if present {
		return r.delegated(token, r.file.String())
	}

	if r.fallback == nil {
		return sfdash.InteractiveCredential{
			Account:         r.config.Account,
			User:            r.config.User,
			SessionDefaults: r.config.SessionDefaults(),
		}, nil
	}

	token, expiresOn, err := r.fallback.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire token from %s: %w", r.fallback, err)
	}
	if !expiresOn.IsZero() && time.Until(expiresOn) < tokenExpiryWarning {
		r.logger.Info("Token from %s expires in %v", r.fallback, time.Until(expiresOn).Round(time.Second))
	}
	return r.delegated(token, r.fallback.String())
}

func (r *CredentialResolver) delegated(token, source string) (sfdash.Credential, error) {
	account := AccountFromHost(r.config.Host)
	if account == "" {
		account = r.config.Account
	}
	if account == "" {
		return nil, fmt.Errorf("delegated-token mode requires SNOWFLAKE_HOST or SNOWFLAKE_ACCOUNT: %w", sfdash.ErrInvalidConfig)
	}

	r.logger.Verbose("Using delegated token from %s", source)
	return sfdash.DelegatedTokenCredential{
		Host:            r.config.Host,
		Account:         account,
		Token:           token,
		Source:          source,
		SessionDefaults: r.config.SessionDefaults(),
	}, nil
}

// AccountFromHost derives the account identifier from the first DNS label of
// a Snowflake host, e.g. "xy12345.eu-west-1.snowflakecomputing.com" -> "xy12345".
func AccountFromHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	label, _, _ := strings.Cut(host, ".")
	return label
}

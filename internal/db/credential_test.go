package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sfdash/internal/logging"
	"github.com/vvka-141/sfdash/pkg/sfdash"
)

func testConnectionConfig(tokenPath string) *sfdash.ConnectionConfig {
	return &sfdash.ConnectionConfig{
		Account:   "acme-analytics",
		User:      "jane@example.com",
		Warehouse: "COMPUTE_WH",
		Database:  "SNOWFLAKE_SAMPLE_DATA",
		Schema:    "TPCH_SF1",
		Host:      "xy12345.eu-west-1.snowflakecomputing.com",
		TokenPath: tokenPath,
	}
}

func writeToken(t *testing.T, path, token string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(token), 0o600))
}

func TestCredentialResolver_TokenFileAbsentSelectsInteractive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	r := NewCredentialResolverWithProvider(testConnectionConfig(path), nil, logging.NewNullLogger())

	cred, err := r.Resolve(context.Background())
	require.NoError(t, err)

	interactive, ok := cred.(sfdash.InteractiveCredential)
	require.True(t, ok, "expected interactive credential, got %T", cred)
	assert.Equal(t, "acme-analytics", interactive.Account)
	assert.Equal(t, "jane@example.com", interactive.User)
	assert.Equal(t, "COMPUTE_WH", interactive.Warehouse)
	assert.Equal(t, "TPCH_SF1", interactive.Schema)
}

func TestCredentialResolver_TokenFilePresentSelectsDelegated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, "abc123\n")
	r := NewCredentialResolverWithProvider(testConnectionConfig(path), nil, logging.NewNullLogger())

	cred, err := r.Resolve(context.Background())
	require.NoError(t, err)

	delegated, ok := cred.(sfdash.DelegatedTokenCredential)
	require.True(t, ok, "expected delegated credential, got %T", cred)
	assert.Equal(t, "abc123", delegated.Token)
	assert.Equal(t, "xy12345", delegated.Account)
	assert.Equal(t, "xy12345.eu-west-1.snowflakecomputing.com", delegated.Host)
	assert.Equal(t, "file:"+path, delegated.Source)
	assert.Equal(t, "SNOWFLAKE_SAMPLE_DATA", delegated.Database)
}

func TestCredentialResolver_TogglingFileChangesVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	r := NewCredentialResolverWithProvider(testConnectionConfig(path), nil, logging.NewNullLogger())
	ctx := context.Background()

	cred, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, sfdash.AuthModeInteractive, cred.Mode())

	writeToken(t, path, "T1")
	cred, err = r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, sfdash.AuthModeDelegatedToken, cred.Mode())

	writeToken(t, path, "T2")
	cred, err = r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T2", cred.(sfdash.DelegatedTokenCredential).Token)

	require.NoError(t, os.Remove(path))
	cred, err = r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, sfdash.AuthModeInteractive, cred.Mode())
}

func TestCredentialResolver_EmptyTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, "  \n")
	r := NewCredentialResolverWithProvider(testConnectionConfig(path), nil, logging.NewNullLogger())

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, sfdash.ErrInvalidConfig)
}

func TestCredentialResolver_DelegatedWithoutHostUsesAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, "abc123")
	cfg := testConnectionConfig(path)
	cfg.Host = ""
	r := NewCredentialResolverWithProvider(cfg, nil, logging.NewNullLogger())

	cred, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme-analytics", cred.(sfdash.DelegatedTokenCredential).Account)
}

func TestCredentialResolver_DelegatedWithoutHostOrAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, "abc123")
	cfg := testConnectionConfig(path)
	cfg.Host = ""
	cfg.Account = ""
	r := NewCredentialResolverWithProvider(cfg, nil, logging.NewNullLogger())

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, sfdash.ErrInvalidConfig)
}

func TestCredentialResolver_FallbackProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	provider := &MockTokenProvider{Token: "entra-token", ExpiresOn: time.Now().Add(time.Hour)}
	r := NewCredentialResolverWithProvider(testConnectionConfig(path), provider, logging.NewNullLogger())

	cred, err := r.Resolve(context.Background())
	require.NoError(t, err)

	delegated, ok := cred.(sfdash.DelegatedTokenCredential)
	require.True(t, ok)
	assert.Equal(t, "entra-token", delegated.Token)
	assert.Equal(t, "MockTokenProvider", delegated.Source)
	assert.Equal(t, 1, provider.Calls)
}

func TestCredentialResolver_TokenFileWinsOverFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, "file-token")
	provider := &MockTokenProvider{Token: "entra-token"}
	r := NewCredentialResolverWithProvider(testConnectionConfig(path), provider, logging.NewNullLogger())

	cred, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file-token", cred.(sfdash.DelegatedTokenCredential).Token)
	assert.Zero(t, provider.Calls)
}

func TestCredentialResolver_FallbackProviderError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	providerErr := errors.New("AADSTS7000215: invalid client secret")
	r := NewCredentialResolverWithProvider(testConnectionConfig(path), &MockTokenProvider{Err: providerErr}, logging.NewNullLogger())

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, providerErr)
	assert.Contains(t, err.Error(), "MockTokenProvider")
}

func TestNewCredentialResolver_UnknownProvider(t *testing.T) {
	cfg := testConnectionConfig("")
	cfg.OAuthProvider = "okta"

	_, err := NewCredentialResolver(cfg, logging.NewNullLogger())
	require.ErrorIs(t, err, sfdash.ErrUnsupportedAuthMode)
}

func TestNewCredentialResolver_DefaultTokenPath(t *testing.T) {
	r, err := NewCredentialResolver(testConnectionConfig(""), logging.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, sfdash.DefaultTokenPath, r.TokenPath())
}

func TestAccountFromHost(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"xy12345.eu-west-1.snowflakecomputing.com", "xy12345"},
		{"myorg-myaccount.snowflakecomputing.com", "myorg-myaccount"},
		{"https://xy12345.snowflakecomputing.com/", "xy12345"},
		{"xy12345.snowflakecomputing.com:443", "xy12345"},
		{"localhost", "localhost"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, AccountFromHost(tt.host))
		})
	}
}

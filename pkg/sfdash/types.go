package sfdash

import (
	"fmt"
	"time"
)

// AuthMode identifies which credential variant a connection was built from.
type AuthMode int

const (
	AuthModeInteractive    AuthMode = iota // Browser-based SSO (local development)
	AuthModeDelegatedToken                 // Platform-supplied OAuth token
)

// String returns a human-readable string representation of the AuthMode.
func (a AuthMode) String() string {
	switch a {
	case AuthModeInteractive:
		return "Interactive"
	case AuthModeDelegatedToken:
		return "Delegated Token"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMode is a valid, defined value.
func (a AuthMode) IsValid() bool {
	return a >= AuthModeInteractive && a <= AuthModeDelegatedToken
}

// Credential is the tagged credential variant a connection handle is bound to.
// The only implementations are InteractiveCredential and DelegatedTokenCredential.
type Credential interface {
	// Mode reports the variant.
	Mode() AuthMode

	// String describes the credential for logging. Must not include secrets.
	String() string

	isCredential()
}

// SessionDefaults are the warehouse/database/schema/role applied to every session.
type SessionDefaults struct {
	Warehouse string
	Database  string
	Schema    string
	Role      string
}

// InteractiveCredential authenticates through an external browser SSO flow.
// No secret material is held by the process.
type InteractiveCredential struct {
	Account string
	User    string
	SessionDefaults
}

// Mode implements Credential.
func (InteractiveCredential) Mode() AuthMode { return AuthModeInteractive }

func (c InteractiveCredential) String() string {
	return fmt.Sprintf("Interactive(account=%s, user=%s)", c.Account, c.User)
}

func (InteractiveCredential) isCredential() {}

// DelegatedTokenCredential authenticates with a bearer token supplied by the
// hosting platform (or an external OAuth provider). The token rotates outside
// of this process; a changed token means a new credential.
type DelegatedTokenCredential struct {
	Host    string
	Account string
	Token   string

	// Source names where the token came from (e.g. "file:/snowflake/session/token").
	Source string
	SessionDefaults
}

// Mode implements Credential.
func (DelegatedTokenCredential) Mode() AuthMode { return AuthModeDelegatedToken }

func (c DelegatedTokenCredential) String() string {
	return fmt.Sprintf("DelegatedToken(host=%s, account=%s, source=%s)", c.Host, c.Account, c.Source)
}

func (DelegatedTokenCredential) isCredential() {}

// SameSignal reports whether a handle built from cached can serve a caller that
// resolved current. Interactive handles are always reusable by interactive
// callers; delegated handles only while the token content is unchanged.
func SameSignal(cached, current Credential) bool {
	if cached == nil || current == nil {
		return false
	}
	switch c := cached.(type) {
	case InteractiveCredential:
		_, ok := current.(InteractiveCredential)
		return ok
	case DelegatedTokenCredential:
		n, ok := current.(DelegatedTokenCredential)
		return ok && n.Token == c.Token && n.Host == c.Host
	default:
		return false
	}
}

// ConnectionConfig is the resolved connection configuration (file, environment
// and flags already merged, placeholders applied).
type ConnectionConfig struct {
	Account   string
	User      string
	Warehouse string
	Database  string
	Schema    string
	Role      string

	// Host is the platform-injected endpoint used only in delegated-token mode.
	Host string

	// Port and Protocol override the driver defaults (443/https). Zero values
	// leave the driver defaults in place.
	Port     int
	Protocol string

	// TokenPath is the well-known file whose presence selects delegated-token mode.
	TokenPath string

	// OAuthProvider selects a token source used when the token file is absent.
	// Empty means interactive mode. "azure" uses Microsoft Entra ID.
	OAuthProvider string
	OAuthScope    string

	// Azure Entra ID service principal. If all three are set a client secret
	// credential is used, otherwise DefaultAzureCredential.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// LoginTimeout is passed to the driver when non-zero. This layer imposes
	// no timeout of its own.
	LoginTimeout time.Duration

	// Application is reported to Snowflake as the client application name.
	Application string
}

// SessionDefaults returns the per-session defaults carried by every credential.
func (c *ConnectionConfig) SessionDefaults() SessionDefaults {
	return SessionDefaults{
		Warehouse: c.Warehouse,
		Database:  c.Database,
		Schema:    c.Schema,
		Role:      c.Role,
	}
}

// HandleState is the lifecycle state of a connection handle.
type HandleState int32

const (
	HandleUninitialized HandleState = iota
	HandleConnecting
	HandleReady
	HandleStale
	HandleClosed
)

func (s HandleState) String() string {
	switch s {
	case HandleUninitialized:
		return "UNINITIALIZED"
	case HandleConnecting:
		return "CONNECTING"
	case HandleReady:
		return "READY"
	case HandleStale:
		return "STALE"
	case HandleClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(s))
	}
}

// Record is one result row keyed by column name exactly as the warehouse
// reported it.
type Record map[string]any

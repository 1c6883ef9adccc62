package config

import "os"

// EnvVars represents the Snowflake connection environment variables.
type EnvVars struct {
	SNOWFLAKE_ACCOUNT   string
	SNOWFLAKE_USER      string
	SNOWFLAKE_WAREHOUSE string
	SNOWFLAKE_DATABASE  string
	SNOWFLAKE_SCHEMA    string
	SNOWFLAKE_ROLE      string
	SNOWFLAKE_HOST      string // Injected by the container platform; delegated-token mode only
	SFDASH_TOKEN_PATH   string // Overrides the token file location for local testing

	// Azure Entra ID environment variables (Azure SDK standard names)
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment reads the process environment. Call after godotenv so
// that .env values are visible.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		SNOWFLAKE_ACCOUNT:   os.Getenv("SNOWFLAKE_ACCOUNT"),
		SNOWFLAKE_USER:      os.Getenv("SNOWFLAKE_USER"),
		SNOWFLAKE_WAREHOUSE: os.Getenv("SNOWFLAKE_WAREHOUSE"),
		SNOWFLAKE_DATABASE:  os.Getenv("SNOWFLAKE_DATABASE"),
		SNOWFLAKE_SCHEMA:    os.Getenv("SNOWFLAKE_SCHEMA"),
		SNOWFLAKE_ROLE:      os.Getenv("SNOWFLAKE_ROLE"),
		SNOWFLAKE_HOST:      os.Getenv("SNOWFLAKE_HOST"),
		SFDASH_TOKEN_PATH:   os.Getenv("SFDASH_TOKEN_PATH"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

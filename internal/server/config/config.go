// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the keyvault server.
//
// Backends are selected by presence: an empty DatabaseDSN keeps everything
// in process memory (with the in-memory mail and blob backends), which is
// the development mode. Setting DatabaseDSN enables Postgres and expects
// the S3, SMTP and Redis settings to point at real services.
type Config struct {
	EndpointAddr string
	DatabaseDSN  string
	SecretKey    string

	SessionValidity           time.Duration
	PendingAuthTTL            time.Duration
	VerificationTokenValidity time.Duration
	VerificationRateWindow    time.Duration
	VerificationRateLimit     int

	SMTPAddr     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string

	RedisAddr string

	AccountOrgs    int
	AccountStorage int64
	OrgMembers     int
	OrgGroups      int
	OrgVaults      int
	OrgStorage     int64
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"

	c.SessionValidity = 24 * time.Hour
	c.PendingAuthTTL = 5 * time.Minute
	c.VerificationTokenValidity = 1 * time.Hour
	c.VerificationRateWindow = 1 * time.Hour
	c.VerificationRateLimit = 5

	c.SMTPAddr = "127.0.0.1:1025"
	c.SMTPFrom = "noreply@keyvault.local"

	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "vault"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"

	c.RedisAddr = ""

	c.AccountOrgs = 5
	c.AccountStorage = 100 << 20
	c.OrgMembers = 50
	c.OrgGroups = 20
	c.OrgVaults = 20
	c.OrgStorage = 1 << 30
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/dmitrijs2005/keyvault/internal/flagx"
)

// Duration accepts both string values such as "5m" and integer nanoseconds
// when unmarshalling JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return errors.New("invalid duration")
	}
	return nil
}

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// Pointer fields distinguish "absent" from zero values so the file only
// overrides what it mentions.
type JsonConfig struct {
	EndpointAddr *string `json:"endpoint_addr"`
	DatabaseDSN  *string `json:"database_dsn"`
	SecretKey    *string `json:"secret_key"`

	SessionValidity           *Duration `json:"session_validity"`
	PendingAuthTTL            *Duration `json:"pending_auth_ttl"`
	VerificationTokenValidity *Duration `json:"verification_token_validity"`
	VerificationRateWindow    *Duration `json:"verification_rate_window"`
	VerificationRateLimit     *int      `json:"verification_rate_limit"`

	SMTPAddr     *string `json:"smtp_addr"`
	SMTPUser     *string `json:"smtp_user"`
	SMTPPassword *string `json:"smtp_password"`
	SMTPFrom     *string `json:"smtp_from"`

	S3RootUser     *string `json:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`

	RedisAddr *string `json:"redis_addr"`

	AccountOrgs    *int   `json:"account_orgs"`
	AccountStorage *int64 `json:"account_storage"`
	OrgMembers     *int   `json:"org_members"`
	OrgGroups      *int   `json:"org_groups"`
	OrgVaults      *int   `json:"org_vaults"`
	OrgStorage     *int64 `json:"org_storage"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; when
// neither is set no file is loaded. An unreadable or invalid file panics,
// a half-applied config being worse than no server.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&config.EndpointAddr, c.EndpointAddr)
	applyString(&config.DatabaseDSN, c.DatabaseDSN)
	applyString(&config.SecretKey, c.SecretKey)
	applyString(&config.SMTPAddr, c.SMTPAddr)
	applyString(&config.SMTPUser, c.SMTPUser)
	applyString(&config.SMTPPassword, c.SMTPPassword)
	applyString(&config.SMTPFrom, c.SMTPFrom)
	applyString(&config.S3RootUser, c.S3RootUser)
	applyString(&config.S3RootPassword, c.S3RootPassword)
	applyString(&config.S3Bucket, c.S3Bucket)
	applyString(&config.S3Region, c.S3Region)
	applyString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	applyString(&config.RedisAddr, c.RedisAddr)

	if c.SessionValidity != nil {
		config.SessionValidity = c.SessionValidity.Duration
	}
	if c.PendingAuthTTL != nil {
		config.PendingAuthTTL = c.PendingAuthTTL.Duration
	}
	if c.VerificationTokenValidity != nil {
		config.VerificationTokenValidity = c.VerificationTokenValidity.Duration
	}
	if c.VerificationRateWindow != nil {
		config.VerificationRateWindow = c.VerificationRateWindow.Duration
	}
	if c.VerificationRateLimit != nil {
		config.VerificationRateLimit = *c.VerificationRateLimit
	}

	if c.AccountOrgs != nil {
		config.AccountOrgs = *c.AccountOrgs
	}
	if c.AccountStorage != nil {
		config.AccountStorage = *c.AccountStorage
	}
	if c.OrgMembers != nil {
		config.OrgMembers = *c.OrgMembers
	}
	if c.OrgGroups != nil {
		config.OrgGroups = *c.OrgGroups
	}
	if c.OrgVaults != nil {
		config.OrgVaults = *c.OrgVaults
	}
	if c.OrgStorage != nil {
		config.OrgStorage = *c.OrgStorage
	}
}

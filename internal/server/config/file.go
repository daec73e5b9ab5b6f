package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/pdfsigner/internal/flagx"
	"github.com/dmitrijs2005/pdfsigner/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for JSON and YAML config files. Pointer fields
// tell "absent" apart from a zero value, so a file only overrides what it
// mentions.
type FileConfig struct {
	EndpointAddrHTTP            *string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	EndpointAddrGRPC            *string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN                 *string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   *string         `json:"secret_key" yaml:"secret_key"`
	PublicTokenSecret           *string         `json:"public_token_secret" yaml:"public_token_secret"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	PublicTokenValidityDuration *timex.Duration `json:"public_token_validity_duration" yaml:"public_token_validity_duration"`
	BaseURL                     *string         `json:"base_url" yaml:"base_url"`
	PublicSignBaseURL           *string         `json:"public_sign_base_url" yaml:"public_sign_base_url"`
	AllowedOrigins              *string         `json:"allowed_origins" yaml:"allowed_origins"`
	StorageBackend              *string         `json:"storage_backend" yaml:"storage_backend"`
	StorageDir                  *string         `json:"storage_dir" yaml:"storage_dir"`
	S3RootUser                  *string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword              *string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                    *string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                    *string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	MaxUploadSize               *int64          `json:"max_upload_size" yaml:"max_upload_size"`
	MaxConcurrentFinalize       *int            `json:"max_concurrent_finalize" yaml:"max_concurrent_finalize"`
	LogBackend                  *string         `json:"log_backend" yaml:"log_backend"`
	LogFormat                   *string         `json:"log_format" yaml:"log_format"`
	LogLevel                    *string         `json:"log_level" yaml:"log_level"`
}

// parseFile overlays values from the file named by -c/-config. Files ending
// in .yaml or .yml are read as YAML, anything else as JSON. An unreadable or
// malformed file panics, as configuration errors are fatal at startup.
func parseFile(config *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.PublicTokenSecret, c.PublicTokenSecret)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.PublicTokenValidityDuration != nil {
		config.PublicTokenValidityDuration = c.PublicTokenValidityDuration.Duration
	}
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.PublicSignBaseURL, c.PublicSignBaseURL)
	setString(&config.AllowedOrigins, c.AllowedOrigins)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.StorageDir, c.StorageDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.MaxUploadSize != nil {
		config.MaxUploadSize = *c.MaxUploadSize
	}
	if c.MaxConcurrentFinalize != nil {
		config.MaxConcurrentFinalize = *c.MaxConcurrentFinalize
	}
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

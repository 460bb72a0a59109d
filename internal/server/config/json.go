package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mfuentesc/siidte/internal/flagx"
	"github.com/mfuentesc/siidte/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP string         `json:"endpoint_addr_http"`
	DatabaseDSN      string         `json:"database_dsn"`
	SecretKey        string         `json:"secret_key"`
	SIIEnvironment   string         `json:"sii_environment"`
	SIIBaseURL       string         `json:"sii_base_url"`
	SIITimeout       timex.Duration `json:"sii_timeout"`
	SIITokenTTL      timex.Duration `json:"sii_token_ttl"`
	SignatureAlg     string         `json:"signature_alg"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3ArchiveEnabled bool           `json:"s3_archive_enabled"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c / -config flags; when
// neither is set, no file is loaded. Read or unmarshal failures panic, as a
// half-applied config is worse than no config.
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

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SIIEnvironment = c.SIIEnvironment
	config.SIIBaseURL = c.SIIBaseURL
	config.SIITimeout = time.Duration(c.SIITimeout.Duration)
	config.SIITokenTTL = time.Duration(c.SIITokenTTL.Duration)
	config.SignatureAlg = c.SignatureAlg
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3ArchiveEnabled = c.S3ArchiveEnabled
}

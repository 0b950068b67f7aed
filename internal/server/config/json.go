package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/car2chain/inspections/internal/flagx"
	"github.com/car2chain/inspections/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. It uses timex.Duration for interval fields, which parses both string
// values such as "24h" and integer nanoseconds. After unmarshalling, its
// fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr       string         `json:"endpoint_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	SessionTTL         timex.Duration `json:"session_ttl"`
	AdminUsername      string         `json:"admin_username"`
	AdminPassword      string         `json:"admin_password"`
	BcryptCost         int            `json:"bcrypt_cost"`
	MaxBodyBytes       int64          `json:"max_body_bytes"`
	MaxAttachmentBytes int64          `json:"max_attachment_bytes"`
	StorageBackend     string         `json:"storage_backend"`
	UploadsDir         string         `json:"uploads_dir"`
	S3RootUser         string         `json:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics: a broken config file
// should stop the process before it serves anything.
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

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SessionTTL = time.Duration(c.SessionTTL.Duration)
	config.AdminUsername = c.AdminUsername
	config.AdminPassword = c.AdminPassword
	config.BcryptCost = c.BcryptCost
	config.MaxBodyBytes = c.MaxBodyBytes
	config.MaxAttachmentBytes = c.MaxAttachmentBytes
	config.StorageBackend = c.StorageBackend
	config.UploadsDir = c.UploadsDir
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}

package s3

import (
	"os"
	"strings"
)

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the AWS region (e.g., "us-east-1").
	// If empty, uses AWS_REGION or AWS_DEFAULT_REGION environment variable.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible services.
	// Examples:
	//   - MinIO: "http://localhost:9000"
	//   - Cloudflare R2: "https://<account_id>.r2.cloudflarestorage.com"
	// Leave empty for AWS S3.
	Endpoint string

	// Prefix is an optional prefix for all keys.
	Prefix string

	// AccessKeyID is the AWS access key ID.
	// If empty, uses AWS_ACCESS_KEY_ID environment variable or IAM role.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	SecretAccessKey string

	// SessionToken is an optional session token for temporary credentials.
	SessionToken string

	// UsePathStyle forces path-style addressing instead of virtual-hosted-style.
	// Required for MinIO.
	UsePathStyle bool

	// DisableSSL selects http:// for an Endpoint given without a scheme.
	DisableSSL bool
}

// ConfigFromEnv creates a Config from environment variables.
// Environment variables:
//   - OMNIBATCH_S3_BUCKET or AWS_S3_BUCKET: bucket name
//   - OMNIBATCH_S3_REGION or AWS_REGION or AWS_DEFAULT_REGION: region
//   - OMNIBATCH_S3_ENDPOINT: custom endpoint
//   - OMNIBATCH_S3_PREFIX: key prefix
//   - AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN: credentials
//   - OMNIBATCH_S3_USE_PATH_STYLE: "true" for path-style addressing
//   - OMNIBATCH_S3_DISABLE_SSL: "true" to disable SSL
func ConfigFromEnv() Config {
	var config Config

	if v := os.Getenv("OMNIBATCH_S3_BUCKET"); v != "" {
		config.Bucket = v
	} else if v := os.Getenv("AWS_S3_BUCKET"); v != "" {
		config.Bucket = v
	}

	if v := os.Getenv("OMNIBATCH_S3_REGION"); v != "" {
		config.Region = v
	} else if v := os.Getenv("AWS_REGION"); v != "" {
		config.Region = v
	} else if v := os.Getenv("AWS_DEFAULT_REGION"); v != "" {
		config.Region = v
	}

	config.Endpoint = os.Getenv("OMNIBATCH_S3_ENDPOINT")
	config.Prefix = os.Getenv("OMNIBATCH_S3_PREFIX")

	config.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	config.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	config.SessionToken = os.Getenv("AWS_SESSION_TOKEN")

	config.UsePathStyle = isTrue(os.Getenv("OMNIBATCH_S3_USE_PATH_STYLE"))
	config.DisableSSL = isTrue(os.Getenv("OMNIBATCH_S3_DISABLE_SSL"))

	return config
}

// ConfigFromMap creates a Config from a string map.
// Supported keys:
//   - bucket: bucket name (required)
//   - region: AWS region
//   - endpoint: custom endpoint URL
//   - prefix: key prefix
//   - access_key_id, secret_access_key, session_token: credentials
//   - use_path_style: "true" for path-style addressing
//   - disable_ssl: "true" to disable SSL
func ConfigFromMap(m map[string]string) Config {
	return Config{
		Bucket:          m["bucket"],
		Region:          m["region"],
		Endpoint:        m["endpoint"],
		Prefix:          m["prefix"],
		AccessKeyID:     m["access_key_id"],
		SecretAccessKey: m["secret_access_key"],
		SessionToken:    m["session_token"],
		UsePathStyle:    isTrue(m["use_path_style"]),
		DisableSSL:      isTrue(m["disable_ssl"]),
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return ErrBucketRequired
	}
	return nil
}

func (c Config) endpointURL() string {
	if c.Endpoint == "" || strings.Contains(c.Endpoint, "://") {
		return c.Endpoint
	}
	if c.DisableSSL {
		return "http://" + c.Endpoint
	}
	return "https://" + c.Endpoint
}

func isTrue(v string) bool {
	return v == "true" || v == "1"
}

package sftp

import (
	"errors"
	"os"
	"strconv"
)

// Errors specific to the SFTP store.
var (
	ErrHostRequired = errors.New("sftp: host is required")
	ErrUserRequired = errors.New("sftp: user is required")
)

// Config holds configuration for the SFTP store.
type Config struct {
	// Host is the SFTP server hostname or IP address (required).
	Host string

	// Port is the SSH port. Default: 22.
	Port int

	// User is the SSH username (required).
	User string

	// Password is the SSH password.
	// Either Password or KeyFile must be provided.
	Password string

	// KeyFile is the path to an SSH private key file.
	// Either Password or KeyFile must be provided.
	KeyFile string

	// KeyPassphrase is the passphrase for encrypted private keys.
	KeyPassphrase string

	// Root is the base directory on the remote server.
	// All paths are relative to this directory.
	Root string

	// KnownHostsFile is the path to the known_hosts file used to verify
	// the server's host key. If empty, host key verification is disabled.
	KnownHostsFile string

	// Timeout is the connection timeout in seconds.
	// Default: 30.
	Timeout int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Port:    22,
		Timeout: 30,
	}
}

// ConfigFromEnv creates a Config from environment variables.
// Environment variables:
//   - OMNIBATCH_SFTP_HOST: server hostname
//   - OMNIBATCH_SFTP_PORT: SSH port (default: 22)
//   - OMNIBATCH_SFTP_USER: username
//   - OMNIBATCH_SFTP_PASSWORD: password
//   - OMNIBATCH_SFTP_KEY_FILE: path to private key
//   - OMNIBATCH_SFTP_KEY_PASSPHRASE: passphrase for encrypted key
//   - OMNIBATCH_SFTP_ROOT: base directory
//   - OMNIBATCH_SFTP_KNOWN_HOSTS: path to known_hosts file
//   - OMNIBATCH_SFTP_TIMEOUT: connection timeout in seconds
func ConfigFromEnv() Config {
	return configFrom(func(key string) string {
		return os.Getenv("OMNIBATCH_SFTP_" + key)
	})
}

// ConfigFromMap creates a Config from a string map.
// Supported keys:
//   - host: server hostname (required)
//   - port: SSH port (default: 22)
//   - user: username (required)
//   - password: password
//   - key_file: path to private key
//   - key_passphrase: passphrase for encrypted key
//   - root: base directory
//   - known_hosts: path to known_hosts file
//   - timeout: connection timeout in seconds
func ConfigFromMap(m map[string]string) Config {
	keys := map[string]string{
		"HOST":           "host",
		"PORT":           "port",
		"USER":           "user",
		"PASSWORD":       "password",
		"KEY_FILE":       "key_file",
		"KEY_PASSPHRASE": "key_passphrase",
		"ROOT":           "root",
		"KNOWN_HOSTS":    "known_hosts",
		"TIMEOUT":        "timeout",
	}
	return configFrom(func(key string) string {
		return m[keys[key]]
	})
}

func configFrom(get func(key string) string) Config {
	config := DefaultConfig()

	config.Host = get("HOST")
	config.User = get("USER")
	config.Password = get("PASSWORD")
	config.KeyFile = get("KEY_FILE")
	config.KeyPassphrase = get("KEY_PASSPHRASE")
	config.Root = get("ROOT")
	config.KnownHostsFile = get("KNOWN_HOSTS")

	if port, err := strconv.Atoi(get("PORT")); err == nil && port > 0 {
		config.Port = port
	}
	if timeout, err := strconv.Atoi(get("TIMEOUT")); err == nil && timeout > 0 {
		config.Timeout = timeout
	}

	return config
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrHostRequired
	}
	if c.User == "" {
		return ErrUserRequired
	}
	return nil
}

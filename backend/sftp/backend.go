// Package sftp provides an SFTP store for omnibatch.
//
// Basic usage with SSH key authentication and host key verification:
//
//	store, err := sftp.New(sftp.Config{
//	    Host:           "data.example.com",
//	    User:           "trainer",
//	    KeyFile:        "/home/trainer/.ssh/id_ed25519",
//	    KnownHostsFile: "/home/trainer/.ssh/known_hosts",
//	    Root:           "/datasets",
//	})
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/grokify/omnibatch"
)

func init() {
	omnibatch.Register("sftp", NewFromConfig)
}

// Store implements omnibatch.Store for SFTP.
type Store struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	config     Config
	closed     bool
	mu         sync.RWMutex
}

// New dials the server and creates a new SFTP store.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30
	}

	var authMethods []ssh.AuthMethod

	if cfg.Password != "" {
		authMethods = append(authMethods, ssh.Password(cfg.Password))
	}

	if cfg.KeyFile != "" {
		keyAuth, err := keyFileAuth(cfg.KeyFile, cfg.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("sftp: loading key file: %w", err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("sftp: no authentication method provided (password or key_file required)")
	}

	hostKeyCallback, err := hostKeyCallback(cfg.KnownHostsFile)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		Timeout:         time.Duration(cfg.Timeout) * time.Second,
		HostKeyCallback: hostKeyCallback,
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	sshClient, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("sftp: SSH connection failed: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		if closeErr := sshClient.Close(); closeErr != nil {
			return nil, fmt.Errorf("sftp: SFTP session failed: %w (also failed to close SSH: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("sftp: SFTP session failed: %w", err)
	}

	return &Store{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		config:     cfg,
	}, nil
}

// NewWithClient creates a store over an established SFTP session. Closing
// the store closes the session.
func NewWithClient(cfg Config, client *sftp.Client) *Store {
	return &Store{
		sftpClient: client,
		config:     cfg,
	}
}

// NewFromConfig creates a new SFTP store from a config map.
// This is used by the omnibatch registry.
func NewFromConfig(configMap map[string]string) (omnibatch.Store, error) {
	return New(ConfigFromMap(configMap))
}

// hostKeyCallback verifies against knownHostsFile, or accepts any key
// when no file is configured.
func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // G106: opt-in via KnownHostsFile
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("sftp: loading known_hosts: %w", err)
	}
	return cb, nil
}

// keyFileAuth creates an SSH auth method from a private key file.
func keyFileAuth(keyFile, passphrase string) (ssh.AuthMethod, error) {
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

// NewReader opens the remote file at p.
func (s *Store) NewReader(ctx context.Context, p string, opts ...omnibatch.ReaderOption) (io.ReadCloser, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := omnibatch.ApplyReaderOptions(opts...)

	f, err := s.sftpClient.Open(s.fullPath(p))
	if err != nil {
		return nil, s.translateError(err, p)
	}

	if cfg.Offset > 0 {
		if _, err := f.Seek(cfg.Offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sftp: seeking to offset: %w", err)
		}
	}

	if cfg.Limit > 0 {
		return &limitedReader{f, cfg.Limit}, nil
	}

	return f, nil
}

// limitedReader wraps a reader with a byte limit.
type limitedReader struct {
	r         io.ReadCloser
	remaining int64
}

func (lr *limitedReader) Read(p []byte) (n int, err error) {
	if lr.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > lr.remaining {
		p = p[:lr.remaining]
	}
	n, err = lr.r.Read(p)
	lr.remaining -= int64(n)
	return
}

func (lr *limitedReader) Close() error {
	return lr.r.Close()
}

// Exists checks if a path exists.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	if err := s.checkClosed(); err != nil {
		return false, err
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.sftpClient.Stat(s.fullPath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, s.translateError(err, p)
	}
	return true, nil
}

// List lists regular files under prefix, recursively. A prefix that is not
// a directory selects the entries of its parent whose name starts with it.
// Unreadable directories fail the listing.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPrefix := s.fullPath(prefix)
	dir := fullPrefix
	namePrefix := ""

	info, err := s.sftpClient.Stat(fullPrefix)
	if err != nil || !info.IsDir() {
		dir = path.Dir(fullPrefix)
		namePrefix = path.Base(fullPrefix)
	}

	paths := []string{}
	if err := s.walkDir(ctx, dir, namePrefix, &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

func (s *Store) walkDir(ctx context.Context, dir, namePrefix string, paths *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := s.sftpClient.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return s.translateError(err, dir)
	}

	for _, entry := range entries {
		if namePrefix != "" && !strings.HasPrefix(entry.Name(), namePrefix) {
			continue
		}

		entryPath := path.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := s.walkDir(ctx, entryPath, "", paths); err != nil {
				return err
			}
			continue
		}
		if !entry.Mode().IsRegular() {
			continue
		}

		relPath := strings.TrimPrefix(entryPath, s.config.Root)
		*paths = append(*paths, strings.TrimPrefix(relPath, "/"))
	}

	return nil
}

// Close closes the SFTP session and the SSH connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.sftpClient != nil {
		errs = append(errs, s.sftpClient.Close())
	}
	if s.sshClient != nil {
		errs = append(errs, s.sshClient.Close())
	}
	return errors.Join(errs...)
}

func (s *Store) fullPath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if s.config.Root == "" {
		return "/" + p
	}
	return path.Join(s.config.Root, p)
}

func (s *Store) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return omnibatch.ErrStoreClosed
	}
	return nil
}

// translateError converts SFTP errors to omnibatch errors.
func (s *Store) translateError(err error, p string) error {
	if err == nil {
		return nil
	}

	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", omnibatch.ErrNotFound, p)
	}

	if os.IsPermission(err) {
		return fmt.Errorf("%w: %s", omnibatch.ErrPermissionDenied, p)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		if os.IsNotExist(pathErr.Err) {
			return fmt.Errorf("%w: %s", omnibatch.ErrNotFound, p)
		}
		if os.IsPermission(pathErr.Err) {
			return fmt.Errorf("%w: %s", omnibatch.ErrPermissionDenied, p)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("sftp: network error for %q: %w", p, err)
	}

	return fmt.Errorf("sftp: error for %q: %w", p, err)
}

// Ensure Store implements omnibatch.Store
var _ omnibatch.Store = (*Store)(nil)

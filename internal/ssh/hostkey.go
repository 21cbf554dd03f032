package ssh

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrUnknownHost is returned for a backup host missing from known_hosts when
// first-use trust is disabled.
var ErrUnknownHost = errors.New("backup host is not in known_hosts")

// HostKeyChangedError reports a backup host presenting a key that differs
// from the one recorded for it.
type HostKeyChangedError struct {
	Host        string
	Fingerprint string
}

func (e *HostKeyChangedError) Error() string {
	return fmt.Sprintf("host key for %s changed to %s; remove the stale known_hosts entry to accept it", e.Host, e.Fingerprint)
}

// KnownHosts verifies backup hosts against the daemon's known_hosts file.
type KnownHosts struct {
	path string
	tofu bool

	mu sync.Mutex
}

// NewKnownHosts builds a verifier from the security.ssh settings.
func NewKnownHosts(cfg config.SSHConfig) (*KnownHosts, error) {
	path := strings.TrimSpace(cfg.KnownHostsPath)
	if path == "" {
		return nil, errors.New("security.ssh.known_hosts_path is not set")
	}
	return &KnownHosts{path: path, tofu: cfg.TrustOnFirstUse}, nil
}

// Path returns the known_hosts file in use.
func (k *KnownHosts) Path() string {
	return k.path
}

// Verify is an ssh.HostKeyCallback. The file is re-read on every call, so a
// host learned during one upload is known to the next.
func (k *KnownHosts) Verify(hostname string, remote net.Addr, key ssh.PublicKey) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	check, err := k.load()
	if err != nil {
		return err
	}

	err = check(hostname, remote, key)
	var keyErr *knownhosts.KeyError
	if err == nil || !errors.As(err, &keyErr) {
		return err
	}

	fingerprint := ssh.FingerprintSHA256(key)
	if len(keyErr.Want) > 0 {
		log.Printf("[SSH] Warning: host key for %s does not match known_hosts (%s)", hostname, fingerprint)
		return &HostKeyChangedError{Host: hostname, Fingerprint: fingerprint}
	}
	if !k.tofu {
		return fmt.Errorf("%s: %w", hostname, ErrUnknownHost)
	}

	if err := k.remember(hostname, remote, key); err != nil {
		return err
	}
	log.Printf("[SSH] Trusted new backup host %s (%s)", hostname, fingerprint)
	return nil
}

func (k *KnownHosts) load() (ssh.HostKeyCallback, error) {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create known_hosts directory: %w", err)
	}
	f, err := os.OpenFile(k.path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open known_hosts: %w", err)
	}
	f.Close()

	check, err := knownhosts.New(k.path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse known_hosts %s: %w", k.path, err)
	}
	return check, nil
}

// remember records key under the dialled name and, when different, the
// resolved address.
func (k *KnownHosts) remember(hostname string, remote net.Addr, key ssh.PublicKey) error {
	names := []string{knownhosts.Normalize(hostname)}
	if remote != nil {
		if addr := knownhosts.Normalize(remote.String()); addr != names[0] {
			names = append(names, addr)
		}
	}

	f, err := os.OpenFile(k.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts: %w", err)
	}
	if _, err := fmt.Fprintln(f, knownhosts.Line(names, key)); err != nil {
		f.Close()
		return fmt.Errorf("failed to record host key for %s: %w", hostname, err)
	}
	return f.Close()
}

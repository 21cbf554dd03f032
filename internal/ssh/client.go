package ssh

import (
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"
)

// ClientConfig holds SSH connection configuration for backup destinations.
type ClientConfig struct {
	Host          string
	Port          int
	Username      string
	KeyPath       string
	KeyPassphrase string
	Password      string
	Timeout       time.Duration
	HostKeys      *KnownHosts
}

// AuthMethods returns the configured authentication methods, key first.
func (c *ClientConfig) AuthMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if c.KeyPath != "" {
		signer, err := LoadSigner(c.KeyPath, c.KeyPassphrase)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no SSH authentication method configured for %s", c.Host)
	}
	return methods, nil
}

// Dial opens an SSH connection with host key verification.
func Dial(c *ClientConfig) (*ssh.Client, error) {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}

	auth, err := c.AuthMethods()
	if err != nil {
		return nil, err
	}

	if c.HostKeys == nil {
		return nil, fmt.Errorf("no known_hosts verifier configured for %s", c.Host)
	}

	address := fmt.Sprintf("%s:%d", c.Host, c.Port)
	client, err := ssh.Dial("tcp", address, &ssh.ClientConfig{
		User:            c.Username,
		Auth:            auth,
		HostKeyCallback: c.HostKeys.Verify,
		Timeout:         c.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial SSH %s: %w", address, err)
	}
	return client, nil
}

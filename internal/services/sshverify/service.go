// Package sshverify checks that a freshly provisioned device accepts SSH logins.
package sshverify

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/fgeck/ciscoprov/internal/models"
)

// DefaultCommand is run after login when none is configured.
const DefaultCommand = "show clock"

// IOS images with a 1024-bit RSA host key only offer SHA-1 based algorithms.
var (
	legacyKeyExchanges = []string{
		"curve25519-sha256",
		"ecdh-sha2-nistp256",
		"diffie-hellman-group14-sha256",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group1-sha1",
	}
	legacyCiphers = []string{
		"aes128-gcm@openssh.com",
		"aes128-ctr",
		"aes256-ctr",
		"aes128-cbc",
	}
	legacyHostKeys = []string{
		ssh.KeyAlgoED25519,
		ssh.KeyAlgoECDSA256,
		ssh.KeyAlgoRSASHA256,
		ssh.KeyAlgoRSA,
	}
)

// Service defines the interface for SSH verification.
type Service interface {
	Verify(ctx context.Context, cfg models.SSHVerifyConfig, target models.SSHTarget) (*models.SSHResult, error)
}

// SSHClient wraps ssh.Client for mocking.
type SSHClient interface {
	NewSession() (SSHSession, error)
	Close() error
}

// SSHSession wraps ssh.Session for mocking.
type SSHSession interface {
	CombinedOutput(cmd string) ([]byte, error)
	Close() error
}

// ClientFactory creates SSH clients.
type ClientFactory interface {
	NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error)
}

// DefaultClientFactory is the default SSH client factory.
type DefaultClientFactory struct{}

// NewClient creates a new SSH client.
func (f *DefaultClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, err
	}
	return &defaultSSHClient{client: client}, nil
}

type defaultSSHClient struct {
	client *ssh.Client
}

func (c *defaultSSHClient) NewSession() (SSHSession, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	return &defaultSSHSession{session: session}, nil
}

func (c *defaultSSHClient) Close() error {
	return c.client.Close()
}

type defaultSSHSession struct {
	session *ssh.Session
}

func (s *defaultSSHSession) CombinedOutput(cmd string) ([]byte, error) {
	return s.session.CombinedOutput(cmd)
}

func (s *defaultSSHSession) Close() error {
	return s.session.Close()
}

// Impl implements the sshverify Service interface.
type Impl struct {
	clientFactory ClientFactory
	logger        zerolog.Logger
}

// New creates a new SSH verification service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		clientFactory: &DefaultClientFactory{},
		logger:        logger,
	}
}

// NewWithClientFactory creates a new SSH verification service with a custom client factory (for testing).
func NewWithClientFactory(logger zerolog.Logger, factory ClientFactory) *Impl {
	return &Impl{
		clientFactory: factory,
		logger:        logger,
	}
}

func buildConfig(cfg models.SSHVerifyConfig, target models.SSHTarget) (*ssh.ClientConfig, error) {
	if target.Username == "" || target.Password == "" {
		return nil, fmt.Errorf("no local credentials provisioned for %s", target.Host)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &ssh.ClientConfig{
		User: target.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(target.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = target.Password
				}
				return answers, nil
			}),
		},
		Config: ssh.Config{
			KeyExchanges: legacyKeyExchanges,
			Ciphers:      legacyCiphers,
		},
		HostKeyAlgorithms: legacyHostKeys,
		HostKeyCallback:   ssh.InsecureIgnoreHostKey(), //nolint:gosec // host key was generated seconds ago
		Timeout:           timeout,
	}, nil
}

// Verify logs in to target with the provisioned credentials and runs one command.
// Login failures are reported in the result, not as an error.
func (s *Impl) Verify(ctx context.Context, cfg models.SSHVerifyConfig, target models.SSHTarget) (*models.SSHResult, error) {
	result := &models.SSHResult{}

	port := target.Port
	if port == 0 {
		port = cfg.Port
	}
	if port == 0 {
		port = 22
	}

	s.logger.Info().
		Str("host", target.Host).
		Int("port", port).
		Str("user", target.Username).
		Msg("verifying SSH login")

	sshConfig, err := buildConfig(cfg, target)
	if err != nil {
		result.Error = err
		return result, nil
	}

	addr := net.JoinHostPort(target.Host, strconv.Itoa(port))

	clientChan := make(chan struct {
		client SSHClient
		err    error
	}, 1)

	go func() {
		client, err := s.clientFactory.NewClient("tcp", addr, sshConfig)
		clientChan <- struct {
			client SSHClient
			err    error
		}{client, err}
	}()

	var client SSHClient
	select {
	case <-ctx.Done():
		result.Error = ctx.Err()
		return result, nil
	case res := <-clientChan:
		if res.err != nil {
			result.Error = fmt.Errorf("failed to connect: %w", res.err)
			return result, nil
		}
		client = res.client
	}
	defer client.Close()
	result.Connected = true

	session, err := client.NewSession()
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		return result, nil
	}
	defer session.Close()

	cmd := cfg.Command
	if cmd == "" {
		cmd = DefaultCommand
	}

	output, err := session.CombinedOutput(cmd)
	result.Output = string(output)
	if err != nil {
		result.Error = fmt.Errorf("command %q failed: %w", cmd, err)
		return result, nil
	}

	s.logger.Info().
		Str("host", target.Host).
		Str("output", result.Output).
		Msg("SSH login verified")

	return result, nil
}

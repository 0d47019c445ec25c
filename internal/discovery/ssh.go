package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"netsentry/internal/domain"
)

// SSHFacts is what the SSH probe learns about a host
type SSHFacts struct {
	OS       string
	Hostname string
}

// SSHProber logs in with one credential and gathers facts
type SSHProber interface {
	Facts(ctx context.Context, address string, port int, cred domain.SSHCredential) (SSHFacts, error)
}

// SSHFactProber runs uname and hostname over SSH
type SSHFactProber struct {
	timeout time.Duration
}

// NewSSHFactProber creates a prober bounding each login by timeout
func NewSSHFactProber(timeout time.Duration) *SSHFactProber {
	return &SSHFactProber{timeout: timeout}
}

func (s *SSHFactProber) Facts(ctx context.Context, address string, port int, cred domain.SSHCredential) (SSHFacts, error) {
	client, err := s.connect(ctx, address, port, cred)
	if err != nil {
		return SSHFacts{}, err
	}
	defer client.Close()

	osName, err := s.runCommand(ctx, client, "uname -s")
	if err != nil {
		return SSHFacts{}, fmt.Errorf("uname: %w", err)
	}

	// hostname is optional
	hostname, _ := s.runCommand(ctx, client, "hostname")

	return SSHFacts{
		OS:       strings.TrimSpace(osName),
		Hostname: strings.TrimSpace(hostname),
	}, nil
}

// connect establishes an SSH connection using cred
func (s *SSHFactProber) connect(ctx context.Context, host string, port int, cred domain.SSHCredential) (*ssh.Client, error) {
	config, err := s.buildSSHConfig(cred)
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	if d, ok := ctx.Deadline(); ok {
		conn.SetDeadline(d)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// buildSSHConfig creates an SSH client config from a credential.
// A private key wins over a password when both are present.
func (s *SSHFactProber) buildSSHConfig(cred domain.SSHCredential) (*ssh.ClientConfig, error) {
	if cred.Username == "" {
		return nil, errors.New("username is required")
	}

	var auth []ssh.AuthMethod
	switch {
	case cred.PrivateKey != "":
		signer, err := ssh.ParsePrivateKey([]byte(cred.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case cred.Password != "":
		auth = append(auth, ssh.Password(cred.Password))
	default:
		return nil, errors.New("credential has neither password nor private key")
	}

	return &ssh.ClientConfig{
		User:            cred.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.timeout,
	}, nil
}

// runCommand executes cmd and returns its output
func (s *SSHFactProber) runCommand(ctx context.Context, client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := session.Output(cmd)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("command failed: %w", r.err)
		}
		return string(r.out), nil
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command timeout: %w", ctx.Err())
	}
}

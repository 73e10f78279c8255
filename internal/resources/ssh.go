package resources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHTarget identifies a remote host and the credentials used to reach it.
type SSHTarget struct {
	User    string
	Host    string
	Port    string
	KeyPath string
}

// Address returns host:port, defaulting to port 22.
func (t SSHTarget) Address() string {
	port := t.Port
	if port == "" {
		port = "22"
	}

	return net.JoinHostPort(t.Host, port)
}

func (t SSHTarget) poolKey() string {
	return t.User + "@" + t.Address()
}

type sshConn struct {
	sync.Mutex
	connClient map[string]*ssh.Client
}

var connPool = sshConn{connClient: make(map[string]*ssh.Client)}

// RetryCfg is the configuration for retrying ssh dials.
// Attempts: total attempts.
// Delay: delay before 1st retry.
// DelayMultiplier: delay multiplier for each retry if needed.
// RetryableErrorSubString: error substrings that MAY retry.
// NonRetryableErrorSubString: error substrings that MUST stop retrying.
type RetryCfg struct {
	Attempts                   int
	Delay                      time.Duration
	DelayMultiplier            float64
	RetryableErrorSubString    []string
	NonRetryableErrorSubString []string
}

var defaultRetryCfg = RetryCfg{
	Attempts:        3,
	Delay:           2 * time.Second,
	DelayMultiplier: 1.0,
	RetryableErrorSubString: []string{
		"connection refused",
		"connection reset by peer",
		"operation timed out",
		"i/o timeout",
	},
	NonRetryableErrorSubString: []string{
		"permission denied",
		"unable to authenticate",
		"host key verification failed",
		"ssh key path is empty",
		"unable to read private key",
		"no such file or directory",
	},
}

// DialUnixWithRetry connects to the unix socket at socketPath on target,
// retrying transient ssh failures.
func DialUnixWithRetry(ctx context.Context, target SSHTarget, socketPath string, cfg *RetryCfg) (net.Conn, error) {
	LogLevel("debug", "Dialing %s on %s with ssh error retry", socketPath, target.Host)

	if cfg == nil {
		tmp := defaultRetryCfg
		cfg = &tmp
	}

	if cfg.Attempts < 1 {
		return nil, fmt.Errorf("invalid attempts: %d", cfg.Attempts)
	}

	delay := cfg.Delay
	if delay <= 0 {
		delay = defaultRetryCfg.Delay
	}
	var (
		conn      net.Conn
		latestErr error
	)

	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ticker.C:
				LogLevel("info", "Retrying dial of %s on %s\nAttempt %d/%d", socketPath, target.Host, attempt, cfg.Attempts)
			case <-ctx.Done():
				return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
			}
		}

		conn, latestErr = DialUnix(target, socketPath)
		if latestErr == nil {
			return conn, nil
		}

		if fatalSSHError(latestErr, cfg) || attempt == cfg.Attempts {
			break
		}

		if cfg.DelayMultiplier > 0 {
			delay = time.Duration(float64(delay) * cfg.DelayMultiplier)
			ticker.Reset(delay)
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", cfg.Attempts, latestErr)
}

// DialUnix connects to the unix socket at socketPath on target, tunnelled
// over the pooled ssh connection to target.
func DialUnix(target SSHTarget, socketPath string) (net.Conn, error) {
	if socketPath == "" {
		return nil, ReturnLogError("socket path should not be empty")
	}
	if target.Host == "" {
		return nil, errors.New("ssh host is empty")
	}

	client, err := getOrDialSSH(target)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host %s: %w", target.Address(), err)
	}

	conn, err := client.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s on %s: %w", socketPath, target.Host, err)
	}

	return conn, nil
}

// fatalSSHError checks if the error is "fatal" accordingly to the config passed and should not be retried.
func fatalSSHError(err error, cfg *RetryCfg) bool {
	msg := strings.ToLower(err.Error())

	for _, nonRetry := range cfg.NonRetryableErrorSubString {
		if strings.Contains(msg, strings.ToLower(nonRetry)) {
			LogLevel("debug", "Fatal error: %s, not retrying %s", msg, nonRetry)
			return true
		}
	}

	for _, retryMessage := range cfg.RetryableErrorSubString {
		if strings.Contains(msg, strings.ToLower(retryMessage)) {
			LogLevel("debug", "Retryable error: %s, retrying %s", msg, retryMessage)
			return false
		}
	}

	// the remote sshd refuses the forward while the daemon socket is down.
	var chanErr *ssh.OpenChannelError
	if errors.As(err, &chanErr) {
		if chanErr.Reason == ssh.ConnectionFailed {
			LogLevel("debug", "Retryable channel error: %s", chanErr.Message)
			return false
		}

		LogLevel("debug", "Fatal channel error: %s, not retrying", chanErr.Message)

		return true
	}

	return errors.Is(err, context.Canceled)
}

func configureSSH(target SSHTarget) (*ssh.Client, error) {
	authMethod, err := publicKey(target.KeyPath)
	if err != nil {
		return nil, ReturnLogError("failed to get public key: %w", err)
	}

	cfg := &ssh.ClientConfig{
		User: target.User,
		Auth: []ssh.AuthMethod{
			authMethod,
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	conn, err := ssh.Dial("tcp", target.Address(), cfg)
	if err != nil {
		return nil, ReturnLogError("failed to dial: %w", err)
	}

	return conn, nil
}

// getOrDialSSH reuses a pooled connection to target or dials a new one.
func getOrDialSSH(target SSHTarget) (*ssh.Client, error) {
	key := target.poolKey()

	connPool.Lock()
	conn := connPool.connClient[key]
	connPool.Unlock()

	// a pooled connection may have been dropped by the hypervisor.
	if conn != nil {
		_, _, err := conn.SendRequest("keepalive@openssh.com", true, nil)
		if err == nil {
			return conn, nil
		}
		LogLevel("debug", "dropping stale ssh connection to %s: %v", key, err)
		_ = conn.Close()
		connPool.Lock()
		delete(connPool.connClient, key)
		connPool.Unlock()
	}

	newConn, err := configureSSH(target)
	if err != nil {
		return nil, fmt.Errorf("failed to configure SSH: %w", err)
	}

	connPool.Lock()
	connPool.connClient[key] = newConn
	connPool.Unlock()

	LogLevel("debug", "SSH connection pool size: %d", len(connPool.connClient))

	return newConn, nil
}

func publicKey(path string) (ssh.AuthMethod, error) {
	if path == "" {
		return nil, errors.New("ssh key path is empty")
	}

	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %w", err)
	}

	signer, signerErr := ssh.ParsePrivateKey(key)
	if signerErr != nil {
		return nil, fmt.Errorf("unable to parse private key: %w", signerErr)
	}

	return ssh.PublicKeys(signer), nil
}

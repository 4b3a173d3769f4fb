package launch

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"golang.org/x/crypto/ssh"
)

// SSHRunner runs commands on a remote host over a single SSH connection.
// Each operation opens its own session, the connection is shared.
type SSHRunner struct {
	client *ssh.Client
	host   string
}

// NewSSHRunner dials the host described by cfg. Authentication uses the
// configured private key when set. Host keys are not verified; the launcher
// trusts the hosts named in its own configuration.
func NewSSHRunner(host string, cfg *SSHConfig) (*SSHRunner, error) {
	if cfg.Host != "" {
		host = cfg.Host
	}

	user := cfg.User
	if user == "" {
		user = os.Getenv("USER")
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}

	var auth []ssh.AuthMethod
	if cfg.KeyPath != "" {
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read ssh key %s: %w", cfg.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("cannot parse ssh key %s: %w", cfg.KeyPath, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("ssh_config for %s needs a key_path", host)
	}

	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", host, port), &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", host, err)
	}

	return &SSHRunner{client: client, host: host}, nil
}

// Run executes a shell command on the remote host.
func (r *SSHRunner) Run(ctx context.Context, command string, opts RunOptions) error {
	if opts.Detach {
		// nohup keeps the VM alive after the session closes.
		command = fmt.Sprintf("nohup %s >/dev/null 2>&1 &", command)
	}

	session, err := r.client.NewSession()
	if err != nil {
		return fmt.Errorf("ssh session on %s: %w", r.host, err)
	}
	defer session.Close()

	if opts.Interactive {
		session.Stdin = os.Stdin
		session.Stdout = os.Stdout
		session.Stderr = os.Stderr

		modes := ssh.TerminalModes{ssh.ECHO: 1}
		if err := session.RequestPty("xterm-256color", 40, 120, modes); err != nil {
			return fmt.Errorf("pty on %s: %w", r.host, err)
		}
	} else if !opts.Detach && opts.Stdin != nil {
		session.Stdin = opts.Stdin
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s on %s failed: %w", firstWord(command), r.host, err)
		}
		return nil
	}
}

// Output executes a shell command on the remote host and returns its stdout.
func (r *SSHRunner) Output(ctx context.Context, command string) (string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh session on %s: %w", r.host, err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.Output(command)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("%s on %s failed: %w", firstWord(command), r.host, res.err)
		}
		return string(res.out), nil
	}
}

// FileExists checks a path on the remote host.
func (r *SSHRunner) FileExists(ctx context.Context, path string) (bool, error) {
	err := r.Run(ctx, fmt.Sprintf("test -e %s", shellQuote(path)), RunOptions{})
	if err == nil {
		return true, nil
	}
	// test exits 1 for a missing path; treat any command failure as absent
	// rather than trying to distinguish exit codes across ssh.
	return false, nil
}

// Upload streams a local file to the remote path through a shell pipe.
func (r *SSHRunner) Upload(ctx context.Context, localPath, remotePath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", localPath, err)
	}
	defer in.Close()

	session, err := r.client.NewSession()
	if err != nil {
		return fmt.Errorf("ssh session on %s: %w", r.host, err)
	}
	defer session.Close()

	session.Stdin = in

	command := fmt.Sprintf("mkdir -p %s && cat > %s",
		shellQuote(path.Dir(remotePath)), shellQuote(remotePath))

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("upload to %s:%s failed: %w", r.host, remotePath, err)
		}
		return nil
	}
}

// Close shuts down the shared SSH connection.
func (r *SSHRunner) Close() error {
	return r.client.Close()
}

// shellQuote single-quotes a path for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

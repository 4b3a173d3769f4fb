package launch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// RunOptions controls how a command runs on a host.
type RunOptions struct {
	// Detach starts the command and returns without waiting, leaving the
	// process running after the launcher exits.
	Detach bool

	// Interactive attaches the command to the invoking terminal.
	Interactive bool

	// Stdin feeds the command's standard input, typically a sudo password.
	// Ignored for detached and interactive commands.
	Stdin io.Reader
}

// Runner executes commands and moves files on a VM host. Implementations
// exist for the local machine and for SSH-reachable hosts.
type Runner interface {
	Run(ctx context.Context, command string, opts RunOptions) error
	Output(ctx context.Context, command string) (string, error)
	FileExists(ctx context.Context, path string) (bool, error)
	Upload(ctx context.Context, localPath, remotePath string) error
	Close() error
}

// LocalRunner runs commands on the local machine through the shell.
type LocalRunner struct{}

// NewLocalRunner creates a runner for the local machine.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run executes a shell command.
func (r *LocalRunner) Run(ctx context.Context, command string, opts RunOptions) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	if opts.Detach {
		cmd.Stdout = nil
		cmd.Stderr = nil
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start %q: %w", command, err)
		}
		return cmd.Process.Release()
	}

	if opts.Interactive {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}

	var stderr bytes.Buffer
	cmd.Stdin = opts.Stdin
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return fmt.Errorf("%s failed: %s", firstWord(command), errMsg)
		}
		return fmt.Errorf("%s failed: %w", firstWord(command), err)
	}

	return nil
}

// Output executes a shell command and returns its stdout.
func (r *LocalRunner) Output(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("%s failed: %s", firstWord(command), errMsg)
		}
		return "", fmt.Errorf("%s failed: %w", firstWord(command), err)
	}

	return stdout.String(), nil
}

// FileExists checks a path on the local filesystem.
func (r *LocalRunner) FileExists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Upload copies a local file to another local path.
func (r *LocalRunner) Upload(_ context.Context, localPath, remotePath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", localPath, err)
	}
	defer in.Close()

	out, err := os.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", remotePath, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s failed: %w", remotePath, err)
	}

	return out.Close()
}

// Close is a no-op for the local runner.
func (r *LocalRunner) Close() error {
	return nil
}

// firstWord trims a shell command down to its leading word for error messages.
func firstWord(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command
	}
	return fields[0]
}

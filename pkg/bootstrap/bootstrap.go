// Package bootstrap installs the ssh-utils repository the launch-vms payload
// depends on: a shallow clone of the upstream repo followed by its own
// install.sh.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/navdeepk/vm-launcher/pkg/doctor"
)

// Defaults for the dependency repository. The clone lands in a fixed
// directory under the system temp dir; the nested installer gets a fixed
// home-relative install target.
const (
	DefaultCloneURL = "https://github.com/async-ssh-utils/async-ssh-utils.git"
	cloneDirName    = "async-ssh-utils"
)

// Bootstrap clones and installs the ssh-utils dependency repository.
type Bootstrap struct {
	executor doctor.CommandExecutor

	CloneURL   string
	CloneDir   string
	InstallDir string
}

// New creates a Bootstrap with the real command executor and default paths.
func New() *Bootstrap {
	return NewWithExecutor(&doctor.RealExecutor{})
}

// NewWithExecutor creates a Bootstrap with a custom executor (for testing).
func NewWithExecutor(exec doctor.CommandExecutor) *Bootstrap {
	return &Bootstrap{
		executor:   exec,
		CloneURL:   DefaultCloneURL,
		CloneDir:   filepath.Join(os.TempDir(), cloneDirName),
		InstallDir: defaultInstallDir(),
	}
}

// defaultInstallDir returns ~/.local/lib/async-ssh-utils, or a temp-relative
// fallback when the home directory cannot be resolved.
func defaultInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), cloneDirName+"-install")
	}
	return filepath.Join(home, ".local", "lib", cloneDirName)
}

// Probe reports whether the launcher's python dependencies import cleanly.
func (b *Bootstrap) Probe() error {
	path, err := b.executor.LookPath("python3")
	if err != nil {
		return fmt.Errorf("python3 is not installed")
	}

	if output, err := b.executor.Run(path, doctor.ImportProbeArgs()...); err != nil {
		msg := strings.TrimSpace(output)
		if msg != "" {
			return fmt.Errorf("python modules not importable: %s", msg)
		}
		return fmt.Errorf("python modules not importable: %w", err)
	}

	return nil
}

// Install shallow-clones the dependency repository and runs its installer.
// Failures are reported to the caller; the install pipeline downgrades them
// to a warning and continues.
func (b *Bootstrap) Install() error {
	if _, err := b.executor.LookPath("git"); err != nil {
		return fmt.Errorf("git is not installed")
	}

	// A stale clone from an interrupted run would make git refuse the clone.
	if err := os.RemoveAll(b.CloneDir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", b.CloneDir, err)
	}

	if output, err := b.executor.CombinedOutput("git", "clone", "--depth", "1", b.CloneURL, b.CloneDir); err != nil {
		return fmt.Errorf("clone failed: %s", firstLine(output, err))
	}

	installScript := filepath.Join(b.CloneDir, "install.sh")
	if output, err := b.executor.CombinedOutput("sh", installScript, b.InstallDir); err != nil {
		return fmt.Errorf("install.sh failed: %s", firstLine(output, err))
	}

	return nil
}

// firstLine picks the first non-empty output line for the error message,
// falling back to the exec error itself.
func firstLine(output []byte, err error) string {
	for _, line := range strings.Split(string(output), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return err.Error()
}

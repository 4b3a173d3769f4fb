// Package installer copies the launch-vms payload into a user-chosen bin
// directory and verifies the result is reachable on the search path.
package installer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/navdeepk/vm-launcher/pkg/bootstrap"
	"github.com/navdeepk/vm-launcher/pkg/tui"
)

const (
	// PayloadFile is the payload shipped alongside the vml binary.
	PayloadFile = "launch_vms.py"

	// InstalledName is the executable name the payload is installed under.
	InstalledName = "launch-vms"
)

// Prompter asks the user a yes/no question. Tests inject a fixed answer.
type Prompter func(question string) (bool, error)

// Installer performs the four-stage install: validate the target directory,
// resolve the python dependencies, copy the payload, verify the search path.
type Installer struct {
	// SourceDir is the directory holding the payload, normally the directory
	// containing the vml executable itself.
	SourceDir string

	// SearchPath is the list of directories the verify stage resolves
	// InstalledName against. Passed in explicitly so the postcondition check
	// is testable without touching the process environment.
	SearchPath []string

	Prompter  Prompter
	Bootstrap *bootstrap.Bootstrap
	Out       io.Writer
}

// New creates an Installer wired to the real environment: the payload next to
// the running executable, the process PATH, and the interactive confirm
// prompt.
func New() (*Installer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot locate own executable: %w", err)
	}

	return &Installer{
		SourceDir:  filepath.Dir(exe),
		SearchPath: filepath.SplitList(os.Getenv("PATH")),
		Prompter:   tui.Confirm,
		Bootstrap:  bootstrap.New(),
		Out:        os.Stdout,
	}, nil
}

// Install runs the pipeline against the target directory. The returned error
// wraps ErrInvalidTarget or ErrPathNotConfigured for the two fatal gates; a
// failed dependency bootstrap only warns.
func (i *Installer) Install(targetDir string) error {
	if err := i.validateTarget(targetDir); err != nil {
		return err
	}

	i.resolveDependencies()

	installed, err := i.copyPayload(targetDir)
	if err != nil {
		return err
	}

	if err := i.verifySearchPath(targetDir); err != nil {
		return err
	}

	fmt.Fprintf(i.Out, "Installed %s\n", installed)
	return nil
}

// validateTarget checks the destination exists and is a directory. The
// directory is never created on the caller's behalf.
func (i *Installer) validateTarget(targetDir string) error {
	info, err := os.Stat(targetDir)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, targetDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, targetDir)
	}
	return nil
}

// resolveDependencies probes the python modules and offers to bootstrap them.
// Nothing here is fatal: a decline is a silent no-op and a failed bootstrap
// is downgraded to a warning, so the copy always runs.
func (i *Installer) resolveDependencies() {
	if err := i.Bootstrap.Probe(); err == nil {
		fmt.Fprintln(i.Out, "Python dependencies satisfied.")
		return
	}

	question := fmt.Sprintf("%s needs the ssh-utils python modules. Install them now?", InstalledName)
	confirmed, err := i.Prompter(question)
	if err != nil || !confirmed {
		return
	}

	fmt.Fprintf(i.Out, "Cloning %s...\n", i.Bootstrap.CloneURL)
	if err := i.Bootstrap.Install(); err != nil {
		fmt.Fprintf(i.Out, "Warning: dependency install failed: %v\n", err)
	}
}

// copyPayload copies the payload into the target directory under
// InstalledName, overwriting any previous install.
func (i *Installer) copyPayload(targetDir string) (string, error) {
	src := filepath.Join(i.SourceDir, PayloadFile)
	dst := filepath.Join(targetDir, InstalledName)

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("cannot read payload %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return "", fmt.Errorf("cannot write %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copy to %s failed: %w", dst, err)
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("copy to %s failed: %w", dst, err)
	}

	return dst, nil
}

// verifySearchPath resolves InstalledName against the injected search path
// and checks the hit is executable. The copied file stays in place on
// failure.
func (i *Installer) verifySearchPath(targetDir string) error {
	for _, dir := range i.SearchPath {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, InstalledName)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode().Perm()&0o111 != 0 {
			return nil
		}
	}

	return fmt.Errorf("%w: add %s to your PATH", ErrPathNotConfigured, targetDir)
}

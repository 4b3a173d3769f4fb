package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/term"
)

// RunnerFactory opens a Runner for a host entry.
type RunnerFactory func(host *HostConfig) (Runner, error)

// SudoPrompter collects the sudo password for a host before its privileged
// network setup runs.
type SudoPrompter func(host string) (string, error)

// Launcher runs every VM in a configuration, hosts in parallel and VMs per
// host in parallel.
type Launcher struct {
	// Overwrite copies local disk images over existing remote ones.
	Overwrite bool

	// WorkDir substitutes "{pwd}" in virtfs paths.
	WorkDir string

	NewRunner    RunnerFactory
	SudoPassword SudoPrompter
	Out          io.Writer
}

// NewLauncher creates a Launcher wired to real local/SSH runners.
func NewLauncher() *Launcher {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Launcher{
		WorkDir:      wd,
		Out:          os.Stdout,
		SudoPassword: promptSudoPassword,
		NewRunner: func(host *HostConfig) (Runner, error) {
			if host.Local() {
				return NewLocalRunner(), nil
			}
			return NewSSHRunner(host.Name(), host.SSH)
		},
	}
}

// promptSudoPassword reads a sudo password from the terminal without echo.
// When stdin is not a terminal, passwordless sudo is assumed.
func promptSudoPassword(host string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprintf(os.Stderr, "[sudo] password for %s: ", host)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read sudo password for %s: %w", host, err)
	}
	return string(password), nil
}

// Run launches every VM in the configuration. Hosts run concurrently; a
// failure on one host does not stop the others. All failures are joined into
// the returned error.
func (l *Launcher) Run(ctx context.Context, cfg Config) error {
	// Collect sudo passwords up front, one prompt per host that needs
	// privileged network setup, before any goroutine touches the terminal.
	passwords := make([]string, len(cfg))
	for i := range cfg {
		if l.SudoPassword == nil || !needsSudo(&cfg[i]) {
			continue
		}
		password, err := l.SudoPassword(cfg[i].Name())
		if err != nil {
			return fmt.Errorf("host %s: %w", cfg[i].Name(), err)
		}
		passwords[i] = password
	}

	errs := make([]error, len(cfg))
	var wg sync.WaitGroup

	for i := range cfg {
		wg.Add(1)
		go func(idx int, host *HostConfig) {
			defer wg.Done()
			errs[idx] = l.runHost(ctx, host, passwords[idx])
		}(i, &cfg[i])
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}

	fmt.Fprintln(l.Out, "All hosts done.")
	return nil
}

// runHost sets up host networking and launches the host's VMs concurrently.
func (l *Launcher) runHost(ctx context.Context, host *HostConfig, sudoPassword string) error {
	runner, err := l.NewRunner(host)
	if err != nil {
		return fmt.Errorf("host %s: %w", host.Name(), err)
	}
	defer runner.Close()

	if len(host.HostNetwork) > 0 {
		fmt.Fprintf(l.Out, "Setting up host network on %s\n", host.Name())
		if err := SetupHostNetwork(ctx, runner, host.HostNetwork, sudoPassword); err != nil {
			return fmt.Errorf("host %s: %w", host.Name(), err)
		}
	}

	errs := make([]error, len(host.VMs))
	var wg sync.WaitGroup

	for i := range host.VMs {
		wg.Add(1)
		go func(idx int, vm *VMConfig) {
			defer wg.Done()
			errs[idx] = l.launchVM(ctx, runner, host, vm, sudoPassword)
		}(i, &host.VMs[i])
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}

	fmt.Fprintf(l.Out, "Running VMs on host %s done\n", host.Name())
	return nil
}

// launchVM prepares images and interfaces for one VM and starts it.
func (l *Launcher) launchVM(ctx context.Context, runner Runner, host *HostConfig, vm *VMConfig, sudoPassword string) error {
	name := vm.Name
	if name == "" {
		name = generateVMName()
	}

	if err := EnsureImage(ctx, runner, vm.LocalPath, vm.RemotePath, l.Overwrite); err != nil {
		return fmt.Errorf("%s on %s: %w", name, host.Name(), err)
	}
	for _, disk := range vm.AdditionalDisks {
		if err := EnsureImage(ctx, runner, disk.LocalPath, disk.RemotePath, l.Overwrite); err != nil {
			return fmt.Errorf("%s on %s: %w", name, host.Name(), err)
		}
	}

	if err := setupInterfaces(ctx, runner, vm.Interfaces, sudoPassword); err != nil {
		return fmt.Errorf("%s on %s: %w", name, host.Name(), err)
	}

	command, err := Command(vm, l.WorkDir)
	if err != nil {
		return fmt.Errorf("%s on %s: %w", name, host.Name(), err)
	}

	fmt.Fprintf(l.Out, "Launching %s on %s: %s\n", name, host.Name(), command)

	opts := RunOptions{}
	if Detached(vm.DisplayMode) {
		opts.Detach = true
	} else {
		opts.Interactive = true
	}

	if err := runner.Run(ctx, command, opts); err != nil {
		return fmt.Errorf("%s on %s: %w", name, host.Name(), err)
	}

	return nil
}

// generateVMName returns a unique name for an unnamed VM.
func generateVMName() string {
	return "vm-" + uuid.NewString()[:8]
}

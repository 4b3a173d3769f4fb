package doctor

import (
	"bytes"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

// PyModules are the python modules the distributed launcher imports at
// startup. The bootstrap flow installs them when the probe fails.
var PyModules = []string{"fabric", "async_process_utils"}

// ImportProbeArgs returns the python3 arguments for the module import probe.
func ImportProbeArgs() []string {
	return []string{"-c", "import " + strings.Join(PyModules, ", ")}
}

// CommandExecutor is an interface for executing commands, allowing for testing.
type CommandExecutor interface {
	LookPath(file string) (string, error)
	Run(name string, args ...string) (string, error)
	CombinedOutput(name string, args ...string) ([]byte, error)
	FileExists(path string) bool
}

// RealExecutor is the default command executor that uses the real system.
type RealExecutor struct{}

// LookPath finds the path to an executable.
func (e *RealExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run executes a command and returns its output.
func (e *RealExecutor) Run(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		// Some tools output version to stderr
		if stderr.Len() > 0 {
			return stderr.String(), err
		}
		return stdout.String(), err
	}
	// Prefer stdout, fall back to stderr (some tools output version to stderr)
	output := stdout.String()
	if output == "" {
		output = stderr.String()
	}
	return output, nil
}

// CombinedOutput runs a command and returns combined stdout and stderr.
func (e *RealExecutor) CombinedOutput(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.CombinedOutput()
}

// FileExists checks if a file exists.
func (e *RealExecutor) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// checkTool checks if a tool is installed and gets its version.
func checkTool(exec CommandExecutor, id, binary, name, desc string, versionArgs []string, versionRegex *regexp.Regexp, fixCmd *FixCommand) Check {
	check := Check{
		ID:          id,
		Name:        name,
		Description: desc,
		FixCommand:  fixCmd,
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		check.Status = StatusMissing
		check.Message = "not installed"
		return check
	}

	// Try to get version
	output, err := exec.Run(path, versionArgs...)
	if err != nil {
		// Tool exists but version check failed - still consider it OK
		check.Status = StatusOK
		check.Message = "installed (version unknown)"
		return check
	}

	// Extract version from output
	version := extractVersion(output, versionRegex)
	if version != "" {
		check.Status = StatusOK
		check.Message = version
	} else {
		check.Status = StatusOK
		check.Message = "installed"
	}

	return check
}

// extractVersion extracts version string from command output.
func extractVersion(output string, regex *regexp.Regexp) string {
	if regex == nil {
		// Default: look for common version patterns
		defaultRegex := regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:-[a-zA-Z0-9]+)?)`)
		matches := defaultRegex.FindStringSubmatch(output)
		if len(matches) >= 2 {
			return matches[1]
		}
		return ""
	}

	matches := regex.FindStringSubmatch(output)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// CheckPython3 checks if the python3 interpreter is installed.
func CheckPython3(exec CommandExecutor) Check {
	return checkTool(
		exec,
		IDPython3,
		"python3",
		"Python 3",
		"Interpreter for the launch-vms payload",
		[]string{"--version"},
		regexp.MustCompile(`Python (\d+\.\d+\.\d+)`),
		GetFixCommand(IDPython3, runtime.GOOS),
	)
}

// CheckPyModules checks whether the launcher's python dependencies import cleanly.
func CheckPyModules(exec CommandExecutor) Check {
	check := Check{
		ID:          IDPyModules,
		Name:        "Python modules",
		Description: strings.Join(PyModules, ", "),
	}

	path, err := exec.LookPath("python3")
	if err != nil {
		check.Status = StatusError
		check.Message = "python3 not installed, cannot probe"
		return check
	}

	if _, err := exec.Run(path, ImportProbeArgs()...); err != nil {
		check.Status = StatusMissing
		check.Message = "not importable (run 'vml install' to bootstrap)"
		return check
	}

	check.Status = StatusOK
	check.Message = "importable"
	return check
}

// CheckGit checks if git is installed.
func CheckGit(exec CommandExecutor) Check {
	return checkTool(
		exec,
		IDGit,
		"git",
		"Git",
		"Needed to bootstrap the ssh-utils dependency",
		[]string{"--version"},
		regexp.MustCompile(`git version (\d+\.\d+(?:\.\d+)?)`),
		GetFixCommand(IDGit, runtime.GOOS),
	)
}

// CheckQemu checks if QEMU is installed.
func CheckQemu(exec CommandExecutor) Check {
	check := Check{
		ID:          IDQemu,
		Name:        "QEMU/KVM",
		Description: "Hypervisor the launcher drives",
		FixCommand:  GetFixCommand(IDQemu, runtime.GOOS),
	}

	// Check for qemu-system-x86_64 or kvm
	path, err := exec.LookPath("qemu-system-x86_64")
	if err != nil {
		path, err = exec.LookPath("kvm")
		if err != nil {
			check.Status = StatusMissing
			check.Message = "not installed"
			return check
		}
	}

	output, err := exec.Run(path, "--version")
	if err != nil {
		check.Status = StatusOK
		check.Message = "installed"
		return check
	}

	version := extractVersion(output, regexp.MustCompile(`QEMU.*version (\d+\.\d+(?:\.\d+)?)`))
	if version != "" {
		check.Status = StatusOK
		check.Message = version
	} else {
		check.Status = StatusOK
		check.Message = "installed"
	}

	return check
}

// CheckQemuImg checks if qemu-img is installed.
func CheckQemuImg(exec CommandExecutor) Check {
	return checkTool(
		exec,
		IDQemuImg,
		"qemu-img",
		"qemu-img",
		"Disk image tool",
		[]string{"--version"},
		regexp.MustCompile(`qemu-img version (\d+\.\d+(?:\.\d+)?)`),
		GetFixCommand(IDQemuImg, runtime.GOOS),
	)
}

// CheckSSH checks if an ssh client is installed.
func CheckSSH(exec CommandExecutor) Check {
	check := Check{
		ID:          IDSSH,
		Name:        "OpenSSH client",
		Description: "Remote access to VM hosts",
		FixCommand:  GetFixCommand(IDSSH, runtime.GOOS),
	}

	// ssh -V exits zero but prints to stderr; presence is enough here
	if _, err := exec.LookPath("ssh"); err != nil {
		check.Status = StatusMissing
		check.Message = "not installed"
		return check
	}

	check.Status = StatusOK
	check.Message = "installed"
	return check
}

package doctor

import "fmt"

// Platform constants.
const (
	PlatformDarwin = "darwin"
	PlatformLinux  = "linux"
)

// fixCommands defines platform-specific fix commands for each tool.
var fixCommands = map[string]map[string]*FixCommand{
	IDPython3: {
		PlatformDarwin: {
			Description: "Install via Homebrew",
			Command:     "brew install python3",
			Sudo:        false,
			Platform:    PlatformDarwin,
		},
		PlatformLinux: {
			Description: "Install via apt",
			Command:     "sudo apt install -y python3 python3-pip",
			Sudo:        true,
			Platform:    PlatformLinux,
		},
	},
	IDGit: {
		PlatformDarwin: {
			Description: "Install via Homebrew",
			Command:     "brew install git",
			Sudo:        false,
			Platform:    PlatformDarwin,
		},
		PlatformLinux: {
			Description: "Install via apt",
			Command:     "sudo apt install -y git",
			Sudo:        true,
			Platform:    PlatformLinux,
		},
	},
	IDQemu: {
		PlatformDarwin: {
			Description: "Install via Homebrew",
			Command:     "brew install qemu",
			Sudo:        false,
			Platform:    PlatformDarwin,
		},
		PlatformLinux: {
			Description: "Install QEMU/KVM",
			Command:     "sudo apt install -y qemu-kvm qemu-utils",
			Sudo:        true,
			Platform:    PlatformLinux,
		},
	},
	IDQemuImg: {
		PlatformDarwin: {
			Description: "Install via Homebrew",
			Command:     "brew install qemu",
			Sudo:        false,
			Platform:    PlatformDarwin,
		},
		PlatformLinux: {
			Description: "Install QEMU utilities",
			Command:     "sudo apt install -y qemu-utils",
			Sudo:        true,
			Platform:    PlatformLinux,
		},
	},
	IDSSH: {
		PlatformLinux: {
			Description: "Install OpenSSH client",
			Command:     "sudo apt install -y openssh-client",
			Sudo:        true,
			Platform:    PlatformLinux,
		},
	},
}

// GetFixCommand returns the fix command for a tool on the given platform.
func GetFixCommand(toolID, platform string) *FixCommand {
	toolFixes, ok := fixCommands[toolID]
	if !ok {
		return nil
	}

	fix, ok := toolFixes[platform]
	if !ok {
		return nil
	}

	return fix
}

// Fixer provides functionality to run fix commands.
type Fixer struct {
	executor CommandExecutor
}

// NewFixer creates a new Fixer.
func NewFixer() *Fixer {
	return &Fixer{
		executor: &RealExecutor{},
	}
}

// NewFixerWithExecutor creates a new Fixer with a custom executor.
func NewFixerWithExecutor(exec CommandExecutor) *Fixer {
	return &Fixer{
		executor: exec,
	}
}

// RunFix executes a fix command.
func (f *Fixer) RunFix(fix *FixCommand) error {
	if fix == nil {
		return fmt.Errorf("no fix command available")
	}

	// Run the command through shell using the executor
	output, err := f.executor.CombinedOutput("sh", "-c", fix.Command)
	if err != nil {
		return fmt.Errorf("fix failed: %w\nOutput: %s", err, string(output))
	}

	return nil
}

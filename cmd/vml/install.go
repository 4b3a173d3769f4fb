package main

import (
	"github.com/spf13/cobra"

	"github.com/navdeepk/vm-launcher/pkg/installer"
)

// newInstallCmd creates the install subcommand
func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <bin-directory>",
		Short: "Install launch-vms into a bin directory",
		Long: `Install the launch-vms payload into an existing directory, offering to
bootstrap its python dependencies, and verify the result resolves on your
PATH. The directory is not created for you.`,
		Args: cobra.ExactArgs(1),
		RunE: runInstall,
	}
}

// runInstall wires the installer to the real environment and runs it.
func runInstall(_ *cobra.Command, args []string) error {
	inst, err := installer.New()
	if err != nil {
		return err
	}

	return inst.Install(args[0])
}

// Package main provides the vml CLI for installing and running the VM
// launcher.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set via -ldflags during build
var version = "dev"

func main() {
	rootCmd := newRootCmd()

	// Cobra handles error printing
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command for vml
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vml",
		Short: "QEMU VM launcher toolkit",
		Long: `vml installs and runs the launch-vms tool for driving QEMU VMs
on local and remote hosts.

It supports:
  - Installing the launch-vms payload into a bin directory on your PATH
  - Bootstrapping the python ssh-utils dependency repository
  - Checking the environment for required tooling
  - Launching VM fleets directly from a host configuration file`,
		Version: version,
	}

	rootCmd.AddCommand(
		newInstallCmd(),
		newDoctorCmd(),
		newLaunchCmd(),
	)

	return rootCmd
}

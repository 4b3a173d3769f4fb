package main

import (
	"github.com/spf13/cobra"

	"github.com/navdeepk/vm-launcher/pkg/launch"
)

// newLaunchCmd creates the launch subcommand
func newLaunchCmd() *cobra.Command {
	var overwriteImage bool

	cmd := &cobra.Command{
		Use:   "launch <config>",
		Short: "Launch VMs from a host configuration file",
		Long: `Launch every VM described in the configuration file. Hosts run in
parallel and VMs on a host run in parallel. The configuration is JSON by
default; .yaml/.yml files parse as YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := launch.LoadConfig(args[0])
			if err != nil {
				return err
			}

			launcher := launch.NewLauncher()
			launcher.Overwrite = overwriteImage
			launcher.Out = cmd.OutOrStdout()

			return launcher.Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolVar(&overwriteImage, "overwrite-image", false,
		"Overwrite remote disk images with the local copies")

	return cmd
}

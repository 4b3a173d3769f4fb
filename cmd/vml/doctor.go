package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/navdeepk/vm-launcher/pkg/doctor"
	"github.com/navdeepk/vm-launcher/pkg/tui"
)

// confirmFunc asks the user a yes/no question.
type confirmFunc func(question string) (bool, error)

// newDoctorCmd creates the doctor subcommand
func newDoctorCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment for required tooling",
		Long: `Check for the tools vml relies on: the python runtime for the
launch-vms payload, git for the dependency bootstrap, QEMU on VM hosts, and
an ssh client for remote hosts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, fix)
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "offer to run the fix command for each missing tool")

	return cmd
}

// runDoctor prints all check groups and fails if anything is missing. With
// --fix, each missing check's fix command is offered before the verdict.
func runDoctor(cmd *cobra.Command, fix bool) error {
	checker := doctor.NewChecker()
	groups := checker.CheckAllAsync()
	out := cmd.OutOrStdout()

	printGroups(out, groups)

	if fix {
		if fixed := applyFixes(out, groups, doctor.NewFixer(), tui.Confirm); fixed > 0 {
			fmt.Fprintln(out, "Re-checking after fixes...")
			fmt.Fprintln(out)
			groups = checker.CheckAllAsync()
			printGroups(out, groups)
		}
	}

	summary := checker.GetSummary(groups)
	fmt.Fprintf(out, "%d checks: %d ok, %d missing, %d warnings, %d errors\n",
		summary.Total, summary.OK, summary.Missing, summary.Warnings, summary.Errors)

	if checker.HasIssues(groups) {
		return fmt.Errorf("%d issue(s) found", summary.Missing+summary.Errors)
	}

	return nil
}

// printGroups renders every check group with per-check status lines.
func printGroups(out io.Writer, groups []doctor.CheckGroup) {
	for _, group := range groups {
		fmt.Fprintf(out, "%s: %s\n", group.Name, group.Description)
		for _, check := range group.Checks {
			fmt.Fprintf(out, "  [%s] %-16s %s\n", check.Status, check.Name, check.Message)
			if check.Status == doctor.StatusMissing && check.FixCommand != nil {
				fmt.Fprintf(out, "        fix: %s\n", check.FixCommand.Command)
			}
		}
		fmt.Fprintln(out)
	}
}

// applyFixes offers and runs the fix command for each missing check,
// returning how many fixes ran successfully. A declined prompt or a failed
// fix moves on to the next check.
func applyFixes(out io.Writer, groups []doctor.CheckGroup, fixer *doctor.Fixer, confirm confirmFunc) int {
	fixed := 0

	for _, group := range groups {
		for _, check := range group.Checks {
			if check.Status != doctor.StatusMissing || check.FixCommand == nil {
				continue
			}

			question := fmt.Sprintf("Run fix for %s? (%s)", check.Name, check.FixCommand.Command)
			ok, err := confirm(question)
			if err != nil {
				fmt.Fprintf(out, "Skipping %s: %v\n", check.Name, err)
				continue
			}
			if !ok {
				fmt.Fprintf(out, "Skipping %s\n", check.Name)
				continue
			}

			fmt.Fprintf(out, "Running: %s\n", check.FixCommand.Command)
			if err := fixer.RunFix(check.FixCommand); err != nil {
				fmt.Fprintf(out, "Fix for %s failed: %v\n", check.Name, err)
				continue
			}
			fixed++
		}
	}

	return fixed
}

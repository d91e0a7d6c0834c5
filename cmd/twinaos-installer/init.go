package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/twinaos/installer/internal/config"
)

var initFlags struct {
	project bool
	force   bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an installer configuration file",
	Long: `Create an installer configuration file with the default settings and
the fixture inventory used by the simulated backend.

By default, creates a global config at ~/.config/twinaos/installer.yml.
Use --project to create twinaos-installer.yml in the current directory.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	initCmd.Flags().BoolVarP(&initFlags.force, "force", "f", false, "Overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetPath := config.GlobalPath()
	if initFlags.project {
		targetPath = config.ProjectPath()
	}

	if !initFlags.force && fileExists(targetPath) {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	cfg := config.Default()
	var err error
	if initFlags.project {
		err = config.WriteProject(cfg)
	} else {
		err = config.WriteGlobal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config written to: %s\n\n", targetPath)
	fmt.Fprintln(out, "Run 'twinaos-installer run' to start the wizard.")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nortonjulian/chatforia-signal/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration as YAML.

The file goes to --config when given, otherwise ./config.yaml.
Fails if the file already exists unless --force is passed.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		dest := cfgFile
		if dest == "" {
			dest = "config.yaml"
		}

		if !initForce {
			if _, err := os.Stat(dest); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", dest, err)
			}
		}

		if err := config.WriteDefault(dest); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("config written to %s\n", dest)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
}

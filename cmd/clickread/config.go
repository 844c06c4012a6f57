package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the clickread config file",
	Long: `Manage the clickread config file.

Examples:
  clickread config init                          # Write defaults to ~/.clickread/config.yaml
  clickread config show                          # Show effective settings
  clickread config set translate.provider openai # Change one setting`,
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			path = h.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h, newLogger(os.Stderr))
		if err != nil {
			return err
		}
		return api.Output(struct {
			File     string         `json:"file,omitempty" yaml:"file,omitempty"`
			Settings []config.Entry `json:"settings" yaml:"settings"`
		}{File: mgr.File(), Settings: mgr.Entries()})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting and write the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h, newLogger(os.Stderr))
		if err != nil {
			return err
		}
		if err := mgr.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	rootCmd.AddCommand(configCmd)
}

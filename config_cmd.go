package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-notes/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE:  runConfigInit,
	}

	cmd.Flags().String("client-id", "", "Azure application (client) ID to store")

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return errors.New("no configuration loaded")
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), resolvedCfg)
	}

	return config.RenderEffective(resolvedCfg, cmd.OutOrStdout())
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configPathFromFlags()

	cfg := config.DefaultConfig()

	clientID, err := cmd.Flags().GetString("client-id")
	if err != nil {
		return err
	}

	cfg.Auth.ClientID = clientID

	if cmd.Flags().Changed("vault") {
		cfg.Vault.Dir = flagVault
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := config.WriteNew(path, cfg); err != nil {
		return err
	}

	statusf("Wrote %s\n", path)

	return nil
}

// configPathFromFlags picks the config path the same way Resolve does,
// without loading the file.
func configPathFromFlags() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}

	if env := config.ReadEnvOverrides(); env.ConfigPath != "" {
		return env.ConfigPath
	}

	return config.DefaultConfigPath()
}

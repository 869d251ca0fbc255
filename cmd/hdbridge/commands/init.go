package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfg "github.com/hdbridge/hdbridge/config"
)

// InitFilesCmd initializes the home directory and writes a default config
// file, leaving an existing one untouched.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the home directory and write a default config file",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	cfg.EnsureRoot(config.RootDir)

	configFilePath := filepath.Join(config.RootDir, "config", "config.toml")
	if _, err := os.Stat(configFilePath); err == nil {
		logger.Info("found existing config file", "path", configFilePath)
		return nil
	}

	if err := cfg.WriteConfigFile(config.RootDir, config); err != nil {
		return err
	}
	logger.Info("generated config file", "path", configFilePath)
	return nil
}

package main

import (
	"os"

	"github.com/hdbridge/hdbridge/cmd/hdbridge/commands"
)

func main() {
	rootCmd := commands.RootCmd
	rootCmd.AddCommand(
		commands.InitFilesCmd,
		commands.StartCmd,
		commands.VersionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

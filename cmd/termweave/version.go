package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"termweave/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("termweave version %s\n", version.Get())
	},
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quernstone/portcullis/internal/buildinfo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information about the Portcullis installation",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.GetBuildInfo()

		fmt.Println(bold("\n── Portcullis Build Information ──"))
		printKV("Version", info.Version)
		printKV("Commit", info.CommitHash)
		printKV("About", info.About)
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

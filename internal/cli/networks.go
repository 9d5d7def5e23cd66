package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the networks jobs may be created on",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		for _, n := range cfg.NetworkSet().Names() {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
	},
}

func init() {
	rootCmd.AddCommand(networksCmd)
}

package cli

import (
	"github.com/spf13/cobra"

	"fbhash/internal/domain"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("fbhash version %s (scheme v%d)\n", version, domain.SchemeVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

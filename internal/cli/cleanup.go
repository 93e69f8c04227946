package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired memories",
		Long: "Delete memories older than their category's TTL, across the global root\n" +
			"and every project root. Pinned memories never expire. TTLs are taken\n" +
			"from the current configuration, so policy changes apply retroactively.",
		Run: runCleanup,
	}
	cmd.Flags().Bool("dry-run", false, "Report expired memories without deleting")

	RootCmd.AddCommand(cmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	e := openEnv()
	defer e.Close()

	report, err := e.life.Cleanup(cmd.Context(), dryRun)
	if err != nil {
		exitErr("cleanup", err)
	}
	e.log(cmd.Context(), "cleanup", "", len(report.Expired))
	printJSON(report)
}

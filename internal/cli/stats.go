package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-root storage statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	stats, err := e.agg.CollectStats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	e.log(cmd.Context(), "stats", "", stats.Total)
	printJSON(stats)
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show command usage counts from the event log",
		Run:   runUsage,
	}
	cmd.Flags().IntP("days", "d", 30, "Look-back window in days")

	RootCmd.AddCommand(cmd)
}

func runUsage(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")

	e := openEnv()
	defer e.Close()

	since := time.Now().UTC().AddDate(0, 0, -days)
	counts, err := e.events.Usage(cmd.Context(), since)
	if err != nil {
		exitErr("usage", err)
	}
	if len(counts) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(counts)
}

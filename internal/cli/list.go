package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Long:  "List memories visible from the current project. Group memories are included only with --groups.",
		Run:   runList,
	}

	addVisibilityFlags(cmd)
	cmd.Flags().StringP("category", "c", "", "Filter by category")
	cmd.Flags().Bool("pinned", false, "Only pinned memories")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 = all)")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	pinned, _ := cmd.Flags().GetBool("pinned")
	limit, _ := cmd.Flags().GetInt("limit")

	e := openEnv()
	defer e.Close()

	memories, err := e.agg.List(cmd.Context(), visibilityContext(cmd), retrieval.ListParams{
		Category:   category,
		PinnedOnly: pinned,
		Limit:      limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	e.log(cmd.Context(), "list", "", len(memories))
	if len(memories) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(memories)
}

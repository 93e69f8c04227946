package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by relevance",
		Long: "Semantic search over the visible scopes when an embedding provider is\n" +
			"configured, with keyword fallback otherwise.",
		Args: cobra.MinimumNArgs(1),
		Run:  runSearch,
	}

	addVisibilityFlags(cmd)
	cmd.Flags().StringP("category", "c", "", "Filter by category")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 = configured default)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	e := openEnv()
	defer e.Close()

	result, err := e.agg.Search(cmd.Context(), visibilityContext(cmd), retrieval.SearchParams{
		Query:    query,
		Category: category,
		Limit:    limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	e.log(cmd.Context(), "search", string(result.Mode), len(result.Results))
	printJSON(result)
}

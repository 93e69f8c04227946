package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long: "Dump every memory visible from the current context, including expired\n" +
			"records, for backup or migration. Use --all-projects for a full dump.",
		Run: runExport,
	}

	addVisibilityFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	memories, err := e.agg.Export(cmd.Context(), visibilityContext(cmd))
	if err != nil {
		exitErr("export", err)
	}
	e.log(cmd.Context(), "export", "", len(memories))
	if len(memories) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(memories)
}

package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "get [id]",
		Aliases: []string{"show"},
		Short:   "Show one memory by id",
		Long:    "Look up a memory in the current project root, then the global root.",
		Args:    cobra.ExactArgs(1),
		Run:     runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	mem, err := e.life.Get(cmd.Context(), args[0], currentProject())
	if err != nil {
		exitErr("get", err)
	}

	e.log(cmd.Context(), "get", "", 1)
	printJSON(mem)
}

package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	promote := &cobra.Command{
		Use:   "promote [id]",
		Short: "Move a project memory to global or group scope",
		Long: "Move a project-scoped memory into the shared store. With --share it\n" +
			"becomes group-scoped; otherwise it becomes global. The id is preserved.",
		Args: cobra.ExactArgs(1),
		Run:  runPromote,
	}
	promote.Flags().StringP("share", "s", "", "Comma-separated groups to scope the memory to")

	unpromote := &cobra.Command{
		Use:   "unpromote [id]",
		Short: "Move a shared memory back into the current project",
		Long:  "Move a global or group-scoped memory into the current project's root, retagged as project-scoped.",
		Args:  cobra.ExactArgs(1),
		Run:   runUnpromote,
	}

	RootCmd.AddCommand(promote, unpromote)
}

func runPromote(cmd *cobra.Command, args []string) {
	share, _ := cmd.Flags().GetString("share")

	e := openEnv()
	defer e.Close()

	res, err := e.life.Promote(cmd.Context(), args[0], currentProject(), splitGroups(share))
	if err != nil {
		exitErr("promote", err)
	}
	e.log(cmd.Context(), "promote", "", 1)
	printJSON(res)
}

func runUnpromote(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	res, err := e.life.Unpromote(cmd.Context(), args[0], currentProject())
	if err != nil {
		exitErr("unpromote", err)
	}
	e.log(cmd.Context(), "unpromote", "", 1)
	printJSON(res)
}

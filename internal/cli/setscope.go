package cli

import (
	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "set-scope [id] [scope]",
		Short: "Retag a memory to another scope",
		Long: "Move a memory to project, group, or global scope, relocating it between\n" +
			"store roots when needed. This is also the recovery path for group-scoped\n" +
			"memories whose owner groups were all revoked.",
		Args: cobra.ExactArgs(2),
		Run:  runSetScope,
	}
	cmd.Flags().StringP("groups", "g", "", "Owner groups (required for group scope)")

	RootCmd.AddCommand(cmd)
}

func runSetScope(cmd *cobra.Command, args []string) {
	groupsFlag, _ := cmd.Flags().GetString("groups")

	e := openEnv()
	defer e.Close()

	res, err := e.life.SetScope(cmd.Context(), args[0], currentProject(), model.Scope(args[1]), splitGroups(groupsFlag))
	if err != nil {
		exitErr("set-scope", err)
	}
	e.log(cmd.Context(), "set-scope", args[1], 1)
	printJSON(res)
}

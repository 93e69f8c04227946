package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	share := &cobra.Command{
		Use:   "share [id]",
		Short: "Grant groups visibility of a memory",
		Long: "Add groups to a memory's owner set. Project and global memories are\n" +
			"converted to group scope, which is reported in the output.",
		Args: cobra.ExactArgs(1),
		Run:  runShare,
	}
	share.Flags().StringP("groups", "g", "", "Comma-separated groups (required)")
	share.MarkFlagRequired("groups")

	unshare := &cobra.Command{
		Use:   "unshare [id]",
		Short: "Revoke groups from a memory",
		Long: "Remove groups from a group-scoped memory's owner set. Removing every\n" +
			"group leaves it invisible until set-scope reassigns it.",
		Args: cobra.ExactArgs(1),
		Run:  runUnshare,
	}
	unshare.Flags().StringP("groups", "g", "", "Comma-separated groups to revoke")
	unshare.Flags().Bool("all", false, "Revoke every group")

	RootCmd.AddCommand(share, unshare)
}

func runShare(cmd *cobra.Command, args []string) {
	groupsFlag, _ := cmd.Flags().GetString("groups")

	e := openEnv()
	defer e.Close()

	res, err := e.life.Share(cmd.Context(), args[0], currentProject(), splitGroups(groupsFlag))
	if err != nil {
		exitErr("share", err)
	}
	e.log(cmd.Context(), "share", "", 1)
	printJSON(res)
}

func runUnshare(cmd *cobra.Command, args []string) {
	groupsFlag, _ := cmd.Flags().GetString("groups")
	all, _ := cmd.Flags().GetBool("all")

	groups := splitGroups(groupsFlag)
	if !all && len(groups) == 0 {
		exitErr("unshare", fmt.Errorf("either --groups or --all is required"))
	}

	e := openEnv()
	defer e.Close()

	res, err := e.life.Unshare(cmd.Context(), args[0], groups, all)
	if err != nil {
		exitErr("unshare", err)
	}
	e.log(cmd.Context(), "unshare", "", 1)
	printJSON(res)
}

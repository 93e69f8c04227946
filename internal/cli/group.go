package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	group := &cobra.Command{
		Use:   "group",
		Short: "Manage workspace groups",
		Long:  "Groups are named sets of projects that share group-scoped memories.",
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		Run:   runGroupCreate,
	}

	del := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a group",
		Long: "Delete a group definition. Refuses while the group still owns memories\n" +
			"unless --force strips it from them first. Memories are never deleted.",
		Args: cobra.ExactArgs(1),
		Run:  runGroupDelete,
	}
	del.Flags().Bool("force", false, "Strip the group from owning memories before deleting")

	join := &cobra.Command{
		Use:   "join [name]",
		Short: "Add the current project to a group",
		Args:  cobra.ExactArgs(1),
		Run:   runGroupJoin,
	}

	leave := &cobra.Command{
		Use:   "leave [name]",
		Short: "Remove the current project from a group",
		Args:  cobra.ExactArgs(1),
		Run:   runGroupLeave,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Run:   runGroupList,
	}

	show := &cobra.Command{
		Use:   "show [name]",
		Short: "Show a group and its members",
		Args:  cobra.ExactArgs(1),
		Run:   runGroupShow,
	}

	group.AddCommand(create, del, join, leave, list, show)
	RootCmd.AddCommand(group)
}

func runGroupCreate(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	g, err := e.reg.Create(args[0])
	if err != nil {
		exitErr("group create", err)
	}
	e.log(cmd.Context(), "group", "create", 1)
	printJSON(g)
}

func runGroupDelete(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")

	e := openEnv()
	defer e.Close()

	res, err := e.life.DeleteGroup(cmd.Context(), args[0], force)
	if err != nil {
		exitErr("group delete", err)
	}
	e.log(cmd.Context(), "group", "delete", res.Updated)
	printJSON(res)
}

func runGroupJoin(cmd *cobra.Command, args []string) {
	project := currentProject()
	if project == "" {
		exitErr("group join", fmt.Errorf("current project could not be determined"))
	}

	e := openEnv()
	defer e.Close()

	g, err := e.reg.Join(args[0], project)
	if err != nil {
		exitErr("group join", err)
	}
	e.log(cmd.Context(), "group", "join", 1)
	printJSON(g)
}

func runGroupLeave(cmd *cobra.Command, args []string) {
	project := currentProject()
	if project == "" {
		exitErr("group leave", fmt.Errorf("current project could not be determined"))
	}

	e := openEnv()
	defer e.Close()

	g, err := e.reg.Leave(args[0], project)
	if err != nil {
		exitErr("group leave", err)
	}
	e.log(cmd.Context(), "group", "leave", 1)
	printJSON(g)
}

func runGroupList(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	groups, err := e.reg.List()
	if err != nil {
		exitErr("group list", err)
	}
	e.log(cmd.Context(), "group", "list", len(groups))
	if len(groups) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(groups)
}

func runGroupShow(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	g, err := e.reg.Get(args[0])
	if err != nil {
		exitErr("group show", err)
	}
	e.log(cmd.Context(), "group", "show", 1)
	printJSON(g)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe one store root",
		Long: "Delete every memory in the current project's root, or in the global\n" +
			"root with --global. Requires --force. This cannot be undone.",
		Run: runReset,
	}
	cmd.Flags().Bool("global", false, "Reset the global root instead of the current project")
	cmd.Flags().Bool("force", false, "Confirm the wipe")

	RootCmd.AddCommand(cmd)
}

func runReset(cmd *cobra.Command, args []string) {
	global, _ := cmd.Flags().GetBool("global")
	force, _ := cmd.Flags().GetBool("force")

	if !force {
		exitErr("reset", fmt.Errorf("refusing to wipe without --force"))
	}

	project := ""
	if !global {
		project = requireProject("reset")
	}

	e := openEnv()
	defer e.Close()

	n, err := e.life.Reset(cmd.Context(), project)
	if err != nil {
		exitErr("reset", err)
	}
	e.log(cmd.Context(), "reset", "", n)
	printJSON(map[string]any{"deleted": n, "global": global})
}

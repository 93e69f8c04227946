package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "forget [id]",
		Short: "Permanently delete a memory",
		Long:  "Delete a memory from whichever visible root holds it. This cannot be undone.",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}

	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	res, err := e.life.Forget(cmd.Context(), args[0], currentProject())
	if err != nil {
		exitErr("forget", err)
	}
	e.log(cmd.Context(), "forget", "", 1)
	printJSON(res)
}

package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	pin := &cobra.Command{
		Use:   "pin [id]",
		Short: "Pin a memory for unconditional startup inclusion",
		Args:  cobra.ExactArgs(1),
		Run:   runPin,
	}
	unpin := &cobra.Command{
		Use:   "unpin [id]",
		Short: "Unpin a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runUnpin,
	}

	RootCmd.AddCommand(pin, unpin)
}

func runPin(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	mem, err := e.life.Pin(cmd.Context(), args[0], currentProject())
	if err != nil {
		exitErr("pin", err)
	}
	e.log(cmd.Context(), "pin", "", 1)
	printJSON(mem)
}

func runUnpin(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	mem, err := e.life.Unpin(cmd.Context(), args[0], currentProject())
	if err != nil {
		exitErr("unpin", err)
	}
	e.log(cmd.Context(), "unpin", "", 1)
	printJSON(mem)
}

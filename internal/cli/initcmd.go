package cli

import (
	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize storage for the current project",
		Long: "Create the base storage layout and the current project's store root.\n" +
			"Running any other command initializes lazily; init just does it up front.",
		Run: runInit,
	}

	RootCmd.AddCommand(cmd)
}

func runInit(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(basePath)
	if err != nil {
		exitErr("init", err)
	}

	out := map[string]string{
		"base":   cfg.BasePath,
		"global": cfg.GlobalPath(),
		"config": cfg.ConfigFile(),
	}

	if project := currentProject(); project != "" {
		storage, err := cfg.ProjectStorage(project)
		if err != nil {
			exitErr("init", err)
		}
		out["project"] = project
		out["project_storage"] = storage
	}

	printJSON(out)
}

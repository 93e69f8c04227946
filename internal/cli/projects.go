package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List known project roots",
		Long:  "List every project that has a store root on this machine, with its storage hash.",
		Run:   runProjects,
	}

	RootCmd.AddCommand(cmd)
}

func runProjects(cmd *cobra.Command, args []string) {
	e := openEnv()
	defer e.Close()

	projects, err := e.cfg.ProjectRoots()
	if err != nil {
		exitErr("projects", err)
	}
	if len(projects) == 0 {
		fmt.Println("[]")
		return
	}

	type projectInfo struct {
		Hash        string `json:"hash"`
		ProjectPath string `json:"project_path"`
		StoragePath string `json:"storage_path"`
	}
	out := make([]projectInfo, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectInfo{Hash: p.Hash, ProjectPath: p.ProjectPath, StoragePath: p.StoragePath})
	}
	printJSON(out)
}

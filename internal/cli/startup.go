package cli

import (
	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/retrieval"
	"github.com/memkeep/memkeep/internal/scope"
	"github.com/memkeep/memkeep/internal/session"
)

// startupOutput wraps the retrieval bundle with the previous session
// reference agents are offered on startup.
type startupOutput struct {
	*retrieval.StartupBundle
	PreviousSession    *session.Session `json:"previous_session,omitempty"`
	AskLoadPrevSession bool             `json:"ask_load_previous_session"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "startup",
		Short: "Load the startup context for an agent session",
		Long: "Collect every pinned memory visible from the current project, plus a\n" +
			"reference to the previous session. Group memories are excluded unless\n" +
			"--groups opts in, and only groups this project is a member of count.",
		Run: runStartup,
	}

	cmd.Flags().StringP("groups", "g", "", `Group memories to include: names or "all" (membership enforced)`)
	cmd.Flags().String("exclude-groups", "", "Groups to skip when --groups=all")
	cmd.Flags().Bool("no-global", false, "Exclude global memories")

	RootCmd.AddCommand(cmd)
}

func runStartup(cmd *cobra.Command, args []string) {
	groupsFlag, _ := cmd.Flags().GetString("groups")
	excludeFlag, _ := cmd.Flags().GetString("exclude-groups")
	noGlobal, _ := cmd.Flags().GetBool("no-global")

	e := openEnv()
	defer e.Close()

	sctx := scope.Context{
		ProjectPath:       currentProject(),
		GroupFilter:       splitGroups(groupsFlag),
		ExcludeGroups:     splitGroups(excludeFlag),
		IncludeGlobal:     !noGlobal,
		AgentOp:           true,
		EnforceMembership: true,
	}

	bundle, err := e.agg.Startup(cmd.Context(), sctx)
	if err != nil {
		exitErr("startup", err)
	}

	out := startupOutput{
		StartupBundle:      bundle,
		AskLoadPrevSession: e.cfg.Startup.AskLoadPreviousSession,
	}
	if e.cfg.Startup.AskLoadPreviousSession && sctx.ProjectPath != "" {
		last, err := e.sessions.Last(sctx.ProjectPath)
		if err == nil {
			out.PreviousSession = last
		} else if _, ok := err.(*model.NotFoundError); !ok {
			exitErr("startup", err)
		}
	}

	e.log(cmd.Context(), "startup", "", len(bundle.Pinned))
	printJSON(out)
}

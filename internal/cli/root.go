// Package cli implements the memkeep CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/config"
	"github.com/memkeep/memkeep/internal/embedding"
	"github.com/memkeep/memkeep/internal/eventlog"
	"github.com/memkeep/memkeep/internal/lifecycle"
	"github.com/memkeep/memkeep/internal/registry"
	"github.com/memkeep/memkeep/internal/retrieval"
	"github.com/memkeep/memkeep/internal/roots"
	"github.com/memkeep/memkeep/internal/scope"
	"github.com/memkeep/memkeep/internal/session"
)

var (
	basePath    string
	projectFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memkeep",
	Short: "Scoped persistent memory for AI coding agents",
	Long: "memkeep stores agent memories in per-project, group, and global scopes.\n" +
		"Project memories stay private to their directory tree; group and global\n" +
		"memories are shared through a single machine-wide store.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&basePath, "base", "b", "", "Storage base path (default: $MEMKEEP_PATH or ~/.memkeep)")
	RootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "Project path (default: current directory)")
}

// env wires the storage layers together for one invocation.
type env struct {
	cfg      *config.Config
	reg      *registry.Registry
	roots    *roots.Roots
	life     *lifecycle.Manager
	agg      *retrieval.Aggregator
	sessions *session.Manager
	events   *eventlog.Logger
}

func openEnv() *env {
	cfg, err := config.Load(basePath)
	if err != nil {
		exitErr("load config", err)
	}

	reg := registry.New(cfg.GroupsFile())
	r := roots.New(cfg)
	resolver := &scope.Resolver{Groups: reg, Projects: r.ProjectPaths}
	embedder := embedding.New(cfg.Semantic)
	life := lifecycle.New(cfg, reg, r, embedder)

	// A broken event log never blocks the command.
	events, _ := eventlog.Open(cfg.EventsFile())

	return &env{
		cfg:      cfg,
		reg:      reg,
		roots:    r,
		life:     life,
		agg:      retrieval.New(cfg, r, resolver, embedder),
		sessions: session.New(cfg, life),
		events:   events,
	}
}

func (e *env) Close() {
	e.roots.Close()
	e.events.Close()
}

func (e *env) log(ctx context.Context, command, subcommand string, results int) {
	e.events.Record(ctx, eventlog.Event{
		Command:     command,
		Subcommand:  subcommand,
		ProjectPath: currentProject(),
		ResultCount: results,
	})
}

// currentProject resolves the project identity: the --project flag, falling
// back to the working directory. Empty when neither resolves.
func currentProject() string {
	if projectFlag != "" {
		return projectFlag
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

// splitGroups parses a comma-separated group flag.
func splitGroups(flag string) []string {
	if flag == "" {
		return nil
	}
	var out []string
	for _, g := range strings.Split(flag, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// addVisibilityFlags registers the shared retrieval visibility flags.
func addVisibilityFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("groups", "g", "", `Include group memories: comma-separated names or "all"`)
	cmd.Flags().String("exclude-groups", "", "Groups to skip when --groups=all")
	cmd.Flags().Bool("no-global", false, "Exclude global memories")
	cmd.Flags().Bool("all-projects", false, "Include every known project root")
}

// visibilityContext builds the scope context from the shared flags.
func visibilityContext(cmd *cobra.Command) scope.Context {
	groupsFlag, _ := cmd.Flags().GetString("groups")
	excludeFlag, _ := cmd.Flags().GetString("exclude-groups")
	noGlobal, _ := cmd.Flags().GetBool("no-global")
	allProjects, _ := cmd.Flags().GetBool("all-projects")

	return scope.Context{
		ProjectPath:   currentProject(),
		GroupFilter:   splitGroups(groupsFlag),
		ExcludeGroups: splitGroups(excludeFlag),
		IncludeGlobal: !noGlobal,
		AllProjects:   allProjects,
	}
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

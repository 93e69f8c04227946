package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	sess := &cobra.Command{
		Use:   "session",
		Short: "Track work sessions",
		Long:  "Sessions group summaries of one stretch of work. At most one session is open per project.",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session, ending any open one",
		Run:   runSessionStart,
	}

	end := &cobra.Command{
		Use:   "end",
		Short: "End the open session",
		Run:   runSessionEnd,
	}

	summarize := &cobra.Command{
		Use:   "summarize [content]",
		Short: "Record a summary for the open session",
		Long: "Save a session_summary memory tagged with the open session's id,\n" +
			"starting a session implicitly when none is open. Content can be a\n" +
			"positional arg or piped via stdin.",
		Run: runSessionSummarize,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Run:   runSessionList,
	}
	list.Flags().IntP("limit", "l", 10, "Max sessions (0 = all)")

	load := &cobra.Command{
		Use:   "load [session-id]",
		Short: "Load the summaries of a session",
		Long:  "Print the stored summaries of a session, defaulting to the previous session.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runSessionLoad,
	}

	sess.AddCommand(start, end, summarize, list, load)
	RootCmd.AddCommand(sess)
}

func requireProject(op string) string {
	project := currentProject()
	if project == "" {
		exitErr(op, fmt.Errorf("current project could not be determined"))
	}
	return project
}

func runSessionStart(cmd *cobra.Command, args []string) {
	project := requireProject("session start")

	e := openEnv()
	defer e.Close()

	s, err := e.sessions.Start(project)
	if err != nil {
		exitErr("session start", err)
	}
	e.log(cmd.Context(), "session", "start", 1)
	printJSON(s)
}

func runSessionEnd(cmd *cobra.Command, args []string) {
	project := requireProject("session end")

	e := openEnv()
	defer e.Close()

	s, err := e.sessions.End(project)
	if err != nil {
		exitErr("session end", err)
	}
	e.log(cmd.Context(), "session", "end", 1)
	printJSON(s)
}

func runSessionSummarize(cmd *cobra.Command, args []string) {
	project := requireProject("session summarize")

	content := readContent(args)
	if content == "" {
		exitErr("session summarize", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	e := openEnv()
	defer e.Close()

	res, err := e.sessions.Summarize(cmd.Context(), project, content)
	if err != nil {
		exitErr("session summarize", err)
	}
	e.log(cmd.Context(), "session", "summarize", 1)
	printJSON(res)
}

func runSessionList(cmd *cobra.Command, args []string) {
	project := requireProject("session list")
	limit, _ := cmd.Flags().GetInt("limit")

	e := openEnv()
	defer e.Close()

	sessions, err := e.sessions.List(project, limit)
	if err != nil {
		exitErr("session list", err)
	}
	e.log(cmd.Context(), "session", "list", len(sessions))
	if len(sessions) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(sessions)
}

func runSessionLoad(cmd *cobra.Command, args []string) {
	project := requireProject("session load")

	e := openEnv()
	defer e.Close()

	id := ""
	if len(args) > 0 {
		id = args[0]
	} else {
		last, err := e.sessions.Last(project)
		if err != nil {
			exitErr("session load", err)
		}
		id = last.ID
	}

	summaries, err := e.sessions.Summaries(cmd.Context(), project, id)
	if err != nil {
		exitErr("session load", err)
	}
	e.log(cmd.Context(), "session", "load", len(summaries))
	if len(summaries) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(summaries)
}

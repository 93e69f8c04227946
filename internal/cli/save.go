package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/lifecycle"
	"github.com/memkeep/memkeep/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "save [content]",
		Short: "Store a memory",
		Long: "Store a memory in the current project. Content can be a positional arg\n" +
			"or piped via stdin. Use --global or --share to widen its scope.",
		Run: runSave,
	}

	cmd.Flags().StringP("category", "c", "", "Category: factual, decision, task_history, session_summary (default: auto-detect)")
	cmd.Flags().Bool("global", false, "Store with global scope, visible to every project")
	cmd.Flags().StringP("share", "s", "", "Comma-separated groups to share with (group scope)")
	cmd.Flags().Bool("pin", false, "Pin for unconditional startup inclusion")
	cmd.Flags().String("source", "", "Origin: user_explicit, auto_task, auto_session")
	cmd.Flags().String("meta", "", "JSON object of string metadata")

	RootCmd.AddCommand(cmd)
}

func runSave(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	global, _ := cmd.Flags().GetBool("global")
	share, _ := cmd.Flags().GetString("share")
	pin, _ := cmd.Flags().GetBool("pin")
	source, _ := cmd.Flags().GetString("source")
	meta, _ := cmd.Flags().GetString("meta")

	content := readContent(args)
	if content == "" {
		exitErr("save", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	groups := splitGroups(share)
	memScope := model.ScopeProject
	if len(groups) > 0 {
		memScope = model.ScopeGroup
	} else if global {
		memScope = model.ScopeGlobal
	}
	if global && len(groups) > 0 {
		exitErr("save", fmt.Errorf("--global and --share are mutually exclusive"))
	}

	var metadata map[string]string
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			exitErr("parse --meta", err)
		}
	}

	e := openEnv()
	defer e.Close()

	res, err := e.life.Save(cmd.Context(), lifecycle.SaveParams{
		Content:     content,
		Category:    category,
		Scope:       memScope,
		ProjectPath: currentProject(),
		Groups:      groups,
		Pinned:      pin,
		Source:      source,
		Metadata:    metadata,
	})
	if err != nil {
		exitErr("save", err)
	}

	e.log(cmd.Context(), "save", string(memScope), 1)
	printJSON(res)
}

// readContent takes the positional args, falling back to piped stdin.
func readContent(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " "))
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return strings.TrimSpace(string(b))
	}
	return ""
}

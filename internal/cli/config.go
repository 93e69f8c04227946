package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/memkeep/memkeep/internal/config"
)

func init() {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Run:   runConfigShow,
	}

	set := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set one config key",
		Long: "Set a dotted config key in config.yaml, e.g.\n" +
			"  memkeep config set semantic.provider ollama\n" +
			"  memkeep config set expiration.enabled true",
		Args: cobra.ExactArgs(2),
		Run:  runConfigSet,
	}

	cfg.AddCommand(show, set)
	RootCmd.AddCommand(cfg)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(basePath)
	if err != nil {
		exitErr("load config", err)
	}
	printConfig(cfg)
}

func runConfigSet(cmd *cobra.Command, args []string) {
	cfg, err := config.Set(basePath, args[0], args[1])
	if err != nil {
		exitErr("config set", err)
	}
	printConfig(cfg)
}

func printConfig(cfg *config.Config) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		exitErr("encode config", err)
	}
	fmt.Print(string(b))
}

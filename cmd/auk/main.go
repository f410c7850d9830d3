// Package main provides the auk CLI: tool schemas, an interactive chat with
// the human-in-the-loop agent, and the MCP server of the user-interaction tools.
package main

import (
	"fmt"
	"os"

	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auk", "cmd")

var version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "auk",
		Short: "Agent user-interaction kit",
		Long: `auk: user-interaction tools for LLM agents with human-in-the-loop.

  auk schema     Print the tool descriptors
  auk chat       Chat with the agent in the terminal
  auk mcp        Serve the tools over MCP`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			xlog.SetFormatter(xlog.NewStringFormatter(cmd.ErrOrStderr()))
			if debug {
				xlog.SetGlobalLogLevel(xlog.DEBUG)
			} else {
				xlog.SetGlobalLogLevel(xlog.WARNING)
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "D", false, "Enable debug logging")

	cmd.AddCommand(schemaCmd())
	cmd.AddCommand(chatCmd())
	cmd.AddCommand(mcpCmd())
	return cmd
}

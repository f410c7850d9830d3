package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/auk/agent"
	aukmcp "github.com/effective-security/auk/mcp"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	var cfgFile, addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the user-interaction tools over MCP",
		Long: `Serve the user-interaction tools over MCP, on stdio by default.

The tools that need a human return an interrupt result,
the host answers the question and continues the conversation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := agent.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			r, err := agent.New(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			srv, err := aukmcp.NewServer(aukmcp.DefaultName, version, r.Middleware())
			if err != nil {
				return err
			}

			if addr == "" {
				return srv.ServeStdio()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Agent config file with the image URLs and web search")
	cmd.Flags().StringVar(&addr, "http", "", "Serve the streamable HTTP transport on the address, e.g. :8080")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes the configured tree to AI agents as MCP tools: insert_node,
move_node, remove_node, validate_tree, rebuild_tree and show_tree.

Transports:
  stdio (default)  JSON-RPC on stdin/stdout, for local agents
  sse              Server-Sent Events over HTTP, for remote agents`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			addr, _ := cmd.Flags().GetString("addr")
			if transport != "stdio" && transport != "sse" {
				return fmt.Errorf("unknown transport %q, supported: stdio, sse", transport)
			}

			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				srv := mcp.NewServer(rt.Tree, mcp.WithLogger(rt.Logger))
				if transport == "stdio" {
					// Logs already go to stderr; stdout carries the protocol.
					rt.Logger.Info("starting arbor mcp server", "transport", transport)
					return srv.ServeStdio()
				}

				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return fmt.Errorf("invalid address %q: %w", addr, err)
				}
				if host == "" {
					host = "localhost"
				}
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				rt.Logger.Info("starting arbor mcp server", "transport", transport, "addr", addr)
				return srv.ServeSSE(ctx, addr, "http://"+net.JoinHostPort(host, port))
			})
		},
	}
	cmd.Flags().String("transport", "stdio", "Transport protocol: stdio or sse")
	cmd.Flags().String("addr", ":8081", "Listen address (sse only)")
	return cmd
}

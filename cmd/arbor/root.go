package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "arbor",
		Short: "arbor manages nested set trees",
		Long: `arbor keeps ordered forests as nested sets (preorder intervals) in SQLite,
PostgreSQL, BadgerDB or memory, and exposes them from the shell or over HTTP.

Settings come from arbor.yaml and ARBOR_<SECTION>_<KEY> environment variables;
the flags below override both.`,
		SilenceUsage: true,
	}

	// Persistent flags (available to all commands)
	pf := root.PersistentFlags()
	pf.String("config", "", "Path to the config file (default ./arbor.yaml when present)")
	pf.String("driver", "", "Store driver: memory, sqlite, postgres or badger")
	pf.String("dsn", "", "Store location (file, directory or connection string)")
	pf.StringP("scope", "s", "", "Scope values as a/b, one per configured scope attribute")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.StringP("output", "o", "text", "Output format: text or json")

	root.AddCommand(
		newAddCmd(),
		newMoveCmd(),
		newRmCmd(),
		newShowCmd(),
		newGraphCmd(),
		newValidateCmd(),
		newRebuildCmd(),
		newServeCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file and environment, then applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := config.Load(path, os.Environ())
	if err != nil {
		return nil, err
	}
	if flags.Changed("driver") {
		cfg.Store.Driver, _ = flags.GetString("driver")
	}
	if flags.Changed("dsn") {
		cfg.Store.DSN, _ = flags.GetString("dsn")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withRuntime opens the configured store for the duration of fn.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *cli.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := cli.NewLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := cli.Bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
	}()
	return fn(ctx, rt)
}

func scopeFlag(cmd *cobra.Command) domain.Scope {
	raw, _ := cmd.Flags().GetString("scope")
	return domain.ParseScope(raw)
}

func parseID(raw string) (domain.ID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return domain.NoID, fmt.Errorf("invalid node id %q", raw)
	}
	return domain.ID(id), nil
}

func jsonOutput(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printNode writes one node, as a JSON object with -o json.
func printNode(cmd *cobra.Command, n *domain.Node) error {
	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), n.Record())
	}
	return printNodes(cmd, []*domain.Node{n})
}

// printNodes writes one node per line, or a JSON array with -o json.
func printNodes(cmd *cobra.Command, nodes []*domain.Node) error {
	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		recs := make([]domain.Record, 0, len(nodes))
		for _, n := range nodes {
			recs = append(recs, n.Record())
		}
		return writeJSON(out, recs)
	}
	for _, n := range nodes {
		parent := "-"
		if !n.IsRoot() {
			parent = strconv.FormatInt(int64(n.Parent()), 10)
		}
		fmt.Fprintf(out, "%d\t%s\tparent=%s\t[%d, %d]\n", n.ID, n.Name, parent, n.Left(), n.Right())
	}
	return nil
}

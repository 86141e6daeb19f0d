package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/colisage/internal/core"
	"github.com/JonMunkholm/colisage/internal/logging"
	"github.com/JonMunkholm/colisage/internal/store/memory"
	"github.com/JonMunkholm/colisage/internal/store/postgres"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	refsFile    string
	aliasesFile string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "colisage",
		Short: "Preview and import packing-list workbooks",
		Long: `colisage reads packing-list workbooks (one line item per row) and checks
them against the customs reference data before importing them into a dossier.

Reference data comes from PostgreSQL (DATABASE_URL) or, with --refs, from a
YAML file, which keeps everything in memory.

Example Usage:
  colisage template -o colisage.xlsx
  colisage preview --dossier 12 --refs refs.yaml colisage.xlsx
  colisage import --dossier 12 --update colisage.xlsx`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if g.verbose {
				level = "debug"
			}
			logging.Setup(cmd.ErrOrStderr(), level, "text")
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&g.refsFile, "refs", "", "YAML reference data file (uses DATABASE_URL when empty)")
	root.PersistentFlags().StringVar(&g.aliasesFile, "aliases", "", "YAML file of extra header aliases")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newTemplateCmd(),
		newPreviewCmd(g),
		newImportCmd(g),
	)
	return root
}

// openService builds an import service over the selected backend. The
// returned close function releases the backend.
func openService(ctx context.Context, g *globalFlags) (*core.Service, func(), error) {
	var aliases core.AliasTable
	if g.aliasesFile != "" {
		var err error
		if aliases, err = core.LoadAliasFile(g.aliasesFile); err != nil {
			return nil, nil, err
		}
	}

	cfg := core.ServiceConfig{Aliases: aliases}
	closeFn := func() {}

	if g.refsFile != "" {
		ref, err := memory.LoadRefData(g.refsFile)
		if err != nil {
			return nil, nil, err
		}
		store := memory.New(ref)
		cfg.Refs, cfg.Store, cfg.Tx, cfg.Audit = store, store, store, store
	} else {
		url := os.Getenv("DATABASE_URL")
		if url == "" {
			return nil, nil, fmt.Errorf("no reference data: set DATABASE_URL or pass --refs")
		}
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: url, MaxConns: 2})
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewStore(pool)
		cfg.Refs, cfg.Store, cfg.Audit = store, store, store
		cfg.Tx = postgres.NewTxManager(pool, postgres.DefaultMaxWait)
		closeFn = pool.Close
	}

	svc, err := core.NewService(cfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}

// openInput opens a workbook path, "-" meaning stdin.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}

// Package cli implements the lsmvec command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/lsmvec"
	"github.com/hupe1980/lsmvec/internal/config"
)

var (
	// Version information set at build time
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo sets the version information from build flags.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "lsmvec",
		Short: "Inspect and modify an lsmvec vector store",
		Long: `lsmvec operates on an embedded persistent vector store directory.

Vectors are given as comma-separated floats, e.g. "0.1,0.2,0.3".

Examples:
  lsmvec add --id doc-1 --meta '{"title":"hello"}' 0.1,0.2,0.3
  lsmvec search --k 5 --metric euclidean 0.1,0.2,0.25
  lsmvec stats --dir ./data`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./lsmvec.yaml)")
	pf.String("dir", config.DefaultDir, "store directory")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("dir", pf.Lookup("dir"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))

	root.AddCommand(
		a.statsCmd(),
		a.getCmd(),
		a.searchCmd(),
		a.addCmd(),
		a.deleteCmd(),
		a.compactCmd(),
		a.flushCmd(),
		versionCmd(),
	)
	return root
}

// withStore opens the configured store, runs fn and closes the store.
func (a *app) withStore(ctx context.Context, fn func(*lsmvec.Store) error) (err error) {
	opts, err := a.cfg.StoreOptions()
	if err != nil {
		return err
	}
	s, err := lsmvec.Open(ctx, a.cfg.Dir, opts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if cerr := s.Close(ctx); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close store: %w", cerr)
		}
	}()
	return fn(s)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lsmvec %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

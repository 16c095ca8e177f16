// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdbsearch CLI. It searches the RCSB
// Protein Data Bank for entries containing a ligand and downloads each match
// as <id>.pdb.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config keys. Each key can be set in pdbsearch.yaml, through a PDBSEARCH_*
// environment variable, or with the flag of the same name.
const (
	keyOutputDir   = "output.dir"
	keyManifest    = "output.manifest"
	keyComparator  = "ligand.comparator"
	keyPolymeric   = "ligand.polymeric"
	keyTimeout     = "http.timeout"
	keyUserAgent   = "http.user_agent"
	keySearchURL   = "search_url"
	keyDownloadURL = "download_url"
	keyHonorCutoff = "honor_cutoff"
	keyVerbose     = "verbose"
)

// newRootCmd builds the pdbsearch command with its own viper instance.
func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "pdbsearch <ligand-name> [<similarity-cutoff>]",
		Short: "Search the PDB for a ligand and download matching structures",
		Long: `pdbsearch submits a ligand name query to the RCSB Protein Data Bank and
downloads every matching entry as <id>.pdb into the output directory, replacing
files of the same name.

When a similarity cutoff is given, a homologue reduction refinement is OR-ed
onto the ligand query. The refinement is sent with an identity cutoff of 90
whatever value is given, unless --honor-cutoff is set.

Structures that fail to download are reported on stderr and skipped.`,
		Version:      version,
		Args:         validateArgs,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args, v)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "config file (default: ./pdbsearch.yaml or ~/.config/pdbsearch/pdbsearch.yaml)")
	f.String("output-dir", ".", "directory structure files are written to")
	f.String("manifest", "", "SQLite file logging each run's downloads (disabled when empty)")
	f.String("comparator", "", "ligand name comparator (default \"Contains\")")
	f.String("polymeric", "", "polymeric type filter (default \"Any\")")
	f.Duration("timeout", 0, "HTTP request timeout, including the response body (0 = no timeout)")
	f.String("user-agent", "", "User-Agent header for PDB requests")
	f.String("search-url", "", "PDB search endpoint")
	f.String("download-url", "", "PDB download endpoint")
	f.Bool("honor-cutoff", false, "send the given similarity cutoff instead of 90")
	f.String("query-file", "", "load the query from a YAML file instead of the arguments")
	f.String("save-query", "", "write the composed query to a YAML file")
	f.Bool("print-query", false, "print the composite query document and exit")
	f.BoolP("verbose", "v", false, "log requests and progress details to stderr")

	for key, flag := range map[string]string{
		keyOutputDir:   "output-dir",
		keyManifest:    "manifest",
		keyComparator:  "comparator",
		keyPolymeric:   "polymeric",
		keyTimeout:     "timeout",
		keyUserAgent:   "user-agent",
		keySearchURL:   "search-url",
		keyDownloadURL: "download-url",
		keyHonorCutoff: "honor-cutoff",
		keyVerbose:     "verbose",
	} {
		// BindPFlag only fails for a nil flag.
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

// validateArgs requires the ligand name unless the query comes from a file.
func validateArgs(cmd *cobra.Command, args []string) error {
	if qf, _ := cmd.Flags().GetString("query-file"); qf != "" {
		return cobra.MaximumNArgs(0)(cmd, args)
	}
	return cobra.RangeArgs(1, 2)(cmd, args)
}

func initConfig(cmd *cobra.Command, v *viper.Viper) {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pdbsearch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pdbsearch"))
		}
	}

	v.SetEnvPrefix("PDBSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", v.ConfigFileUsed())
	}
}

// newLogger returns the debug logger. Without verbose only warnings and
// errors are written, so stdout and stderr carry the plain progress and
// failure lines.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

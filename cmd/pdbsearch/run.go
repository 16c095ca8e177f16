package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdbsearch/internal/archive"
	"github.com/pdiddy/pdbsearch/internal/query"
	"github.com/pdiddy/pdbsearch/internal/rcsb"
	"github.com/pdiddy/pdbsearch/pkg/types"
)

// searchArgs holds the parsed positional arguments.
type searchArgs struct {
	Ligand    string
	Cutoff    int
	HasCutoff bool
}

func parseArgs(args []string) (searchArgs, error) {
	var sa searchArgs
	if len(args) == 0 {
		return sa, nil
	}
	sa.Ligand = args[0]
	if len(args) > 1 {
		cutoff, err := strconv.Atoi(args[1])
		if err != nil {
			return sa, fmt.Errorf("invalid similarity cutoff %q: %w", args[1], err)
		}
		sa.Cutoff = cutoff
		sa.HasCutoff = true
	}
	return sa, nil
}

// buildExpression composes the ligand query and, when a cutoff was given,
// ORs a homologue reduction refinement onto it. Unless honorCutoff is set
// the refinement carries query.DefaultIdentityCutoff, not sa.Cutoff.
func buildExpression(sa searchArgs, lig types.LigandConfig, honorCutoff bool) query.Expression {
	e := query.FromClause(query.LigandName(sa.Ligand, lig.Comparator, lig.Polymeric))
	if !sa.HasCutoff {
		return e
	}
	cutoff := query.DefaultIdentityCutoff
	if honorCutoff {
		cutoff = sa.Cutoff
	}
	return query.CombineOr(e, query.FromClause(query.HomologueReduction(cutoff)))
}

func clientConfig(v *viper.Viper) types.ClientConfig {
	ua := v.GetString(keyUserAgent)
	if ua == "" {
		ua = userAgent()
	}
	return types.ClientConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   v.GetDuration(keyTimeout),
			UserAgent: ua,
		},
		SearchURL:   v.GetString(keySearchURL),
		DownloadURL: v.GetString(keyDownloadURL),
	}
}

func runSearch(cmd *cobra.Command, args []string, v *viper.Viper) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	logger := newLogger(errw, v.GetBool(keyVerbose))

	sa, err := parseArgs(args)
	if err != nil {
		return err
	}

	var expr query.Expression
	if qf, _ := cmd.Flags().GetString("query-file"); qf != "" {
		expr, err = query.ReadFile(qf)
		if err != nil {
			return err
		}
		logger.Debug("loaded query file", "path", qf, "refinements", expr.Len())
	} else {
		honor := v.GetBool(keyHonorCutoff)
		if sa.HasCutoff && !honor && sa.Cutoff != query.DefaultIdentityCutoff {
			logger.Info("similarity cutoff not sent; use --honor-cutoff",
				"given", sa.Cutoff, "sent", query.DefaultIdentityCutoff)
		}
		expr = buildExpression(sa, types.LigandConfig{
			Comparator: v.GetString(keyComparator),
			Polymeric:  v.GetString(keyPolymeric),
		}, honor)
	}

	if path, _ := cmd.Flags().GetString("save-query"); path != "" {
		if err := query.WriteFile(path, expr); err != nil {
			return fmt.Errorf("saving query: %w", err)
		}
		logger.Debug("saved query file", "path", path)
	}

	if printOnly, _ := cmd.Flags().GetBool("print-query"); printOnly {
		fmt.Fprintln(out, query.Render(expr))
		return nil
	}

	outCfg := types.OutputConfig{
		Dir:      v.GetString(keyOutputDir),
		Manifest: v.GetString(keyManifest),
	}

	client := rcsb.NewClient(clientConfig(v), out, errw)
	client.Logger = logger

	var manifest *archive.Manifest
	var runID string
	if outCfg.Manifest != "" {
		manifest, err = archive.OpenManifest(outCfg.Manifest)
		if err != nil {
			return err
		}
		defer manifest.Close()

		runID, err = manifest.BeginRun(query.Render(expr))
		if err != nil {
			return err
		}
		client.OnFetchError = func(id string, fetchErr error) {
			if err := manifest.RecordFailure(runID, id, fetchErr); err != nil {
				logger.Warn("manifest", "err", err)
			}
		}
	}

	records, err := client.FetchAll(cmd.Context(), expr)
	if err != nil {
		return err
	}
	if manifest != nil {
		if err := manifest.SetFound(runID, len(client.IDs())); err != nil {
			logger.Warn("manifest", "err", err)
		}
	}

	writer := archive.Writer{Dir: outCfg.Dir}
	summary := writer.WriteAll(records, manifest, runID, errw)
	logger.Debug("run complete",
		slog.Int("found", len(client.IDs())),
		slog.Int("written", summary.Written),
		slog.Int("write_failures", summary.Failed),
		slog.Int64("bytes", summary.Bytes))

	if manifest != nil {
		if err := manifest.FinishRun(runID); err != nil {
			logger.Warn("manifest", "err", err)
		}
		reportRun(cmd, manifest, runID, logger)
	}
	return nil
}

// reportRun prints the manifest totals for runID followed by the
// identifiers that failed to download.
func reportRun(cmd *cobra.Command, m *archive.Manifest, runID string, logger *slog.Logger) {
	runs, err := m.Runs()
	if err != nil {
		logger.Warn("manifest", "err", err)
		return
	}
	for _, r := range runs {
		if r.ID != runID {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d found, %d downloaded, %d failed\n",
			r.ID, r.Found, r.Downloaded, r.Failed)
	}

	downloads, err := m.Downloads(runID)
	if err != nil {
		logger.Warn("manifest", "err", err)
		return
	}
	var failed []string
	for _, d := range downloads {
		if d.Status == archive.StatusFailed {
			failed = append(failed, d.StructureID)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Failed: %s\n", strings.Join(failed, " "))
	}
}

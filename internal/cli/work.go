package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/datacite/akita/internal/chart"
	"github.com/datacite/akita/internal/extract"
	"github.com/datacite/akita/internal/metrics"
	"github.com/datacite/akita/internal/model"
)

var workChartDir string

// workCmd shows a work's counters, citation and charts
var workCmd = &cobra.Command{
	Use:   "work <doi>",
	Short: "Show metrics and citation for a work",
	Long: `Work prints the formatted citation of a work as plain text with its
links, the citation, view and download counters, and optionally writes the
citations, views and downloads charts into a directory.

Example:
  akita work 10.5061/dryad.8jd18
  akita work 10.5061/dryad.8jd18 --charts ./charts`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			work, err := a.client.WorkMetrics(ctx, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s\n", work.ID)

			if work.FormattedCitation != "" {
				citation, err := citationOf(work.FormattedCitation)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "\n%s\n", citation.Text)
				for _, link := range citation.Links {
					fmt.Fprintf(w, "  %s [%s]\n", link.URL, link.Kind)
				}
			}

			if counter := metrics.Counter(work.CitationCount, work.ViewCount, work.DownloadCount); counter != "" {
				fmt.Fprintf(w, "\n%s\n", counter)
			}

			if workChartDir == "" {
				return nil
			}
			paths, err := writeWorkCharts(a, work, workChartDir, time.Now())
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", p)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(workCmd)
	workCmd.Flags().StringVar(&workChartDir, "charts", "", "write Vega-Lite chart specs into this directory")
	workCmd.Flags().DurationVar(&requestTimeout, "timeout", time.Minute, "request timeout")
}

func citationOf(html string) (*model.Citation, error) {
	e, err := extract.NewCitationExtractor("")
	if err != nil {
		return nil, err
	}
	return e.Extract(html)
}

// writeWorkCharts writes the charts that have data and returns their paths
func writeWorkCharts(a *app, work *model.WorkMetrics, dir string, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart directory: %w", err)
	}

	specs := map[string]chart.Spec{}
	if work.CitationCount > 0 {
		specs["citations.json"] = chart.Citations(work.CitationsOverTime(), now, work.DOI)
	}
	if work.ViewCount > 0 {
		specs["views.json"] = usageSpec(work, false, now)
	}
	if work.DownloadCount > 0 {
		specs["downloads.json"] = usageSpec(work, true, now)
	}

	var paths []string
	for _, name := range []string{"citations.json", "views.json", "downloads.json"} {
		spec, ok := specs[name]
		if !ok {
			continue
		}
		data, err := spec.JSON(a.pretty)
		if err != nil {
			return paths, fmt.Errorf("marshal %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/datacite/akita/internal/chart"
	"github.com/datacite/akita/internal/model"
)

var (
	usageDownloads  bool
	productionType  string
	productionColor string
	productionLower int
	productionYears int
	requestTimeout    time.Duration
)

// chartCmd groups the chart subcommands
var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Print Vega-Lite chart specifications",
	Long: `Chart commands fetch time series from the API and print a Vega-Lite v4
specification with the data inlined, ready for any Vega-Lite renderer.

Example:
  akita chart citations 10.5061/dryad.8jd18
  akita chart usage 10.5061/dryad.8jd18 --downloads
  akita chart production --type dataset --lookback 20`,
}

var chartCitationsCmd = &cobra.Command{
	Use:   "citations <doi>",
	Short: "Citations per year for a work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			work, err := a.client.WorkMetrics(ctx, args[0])
			if err != nil {
				return err
			}
			spec := chart.Citations(work.CitationsOverTime(), time.Now(), work.DOI)
			return a.writeJSON(cmd.OutOrStdout(), spec)
		})
	},
}

var chartUsageCmd = &cobra.Command{
	Use:   "usage <doi>",
	Short: "Views (or downloads) per month for a work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			work, err := a.client.WorkMetrics(ctx, args[0])
			if err != nil {
				return err
			}
			return a.writeJSON(cmd.OutOrStdout(), usageSpec(work, usageDownloads, time.Now()))
		})
	},
}

var chartProductionCmd = &cobra.Command{
	Use:   "production",
	Short: "Works registered per year",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			stats, err := a.client.Stats(ctx)
			if err != nil {
				return err
			}
			works, title, err := productionWorks(stats, productionType)
			if err != nil {
				return err
			}
			spec := chart.Production(works.Published, time.Now(), chart.ProductionOptions{
				Title:          title,
				Color:          productionColor,
				LowerBoundYear: productionLower,
				Lookback:       productionYears,
				Count:          works.TotalCount,
			})
			return a.writeJSON(cmd.OutOrStdout(), spec)
		})
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartCitationsCmd, chartUsageCmd, chartProductionCmd)

	chartCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", time.Minute, "request timeout")
	chartUsageCmd.Flags().BoolVar(&usageDownloads, "downloads", false, "chart downloads instead of views")
	chartProductionCmd.Flags().StringVar(&productionType, "type", "dataset", "resource type: publication, dataset or software")
	chartProductionCmd.Flags().StringVar(&productionColor, "color", "", "bar colour (default #1abc9c)")
	chartProductionCmd.Flags().IntVar(&productionLower, "lower-bound", 0, "first excluded year (overrides --lookback)")
	chartProductionCmd.Flags().IntVar(&productionYears, "lookback", chart.DefaultProductionLookback, "years to show, at most 20")
}

// withApp builds the app and runs fn under the request timeout
func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	ctx, stop := signalContext(ctx)
	defer stop()

	return fn(ctx, a)
}

func usageSpec(work *model.WorkMetrics, downloads bool, now time.Time) chart.Spec {
	if downloads {
		return chart.Usage(work.DownloadsOverTime, now, work.PublicationYear, "Download", work.DownloadCount)
	}
	return chart.Usage(work.ViewsOverTime, now, work.PublicationYear, "View", work.ViewCount)
}

// productionWorks picks the per-type aggregate for the production chart
func productionWorks(stats *model.Stats, resourceType string) (model.Works, string, error) {
	switch strings.ToLower(resourceType) {
	case "publication", "publications", "text":
		return stats.Publications, "Publications", nil
	case "dataset", "datasets":
		return stats.Datasets, "Datasets", nil
	case "software", "softwares":
		return stats.Softwares, "Software", nil
	default:
		return model.Works{}, "", fmt.Errorf("unknown resource type %q", resourceType)
	}
}

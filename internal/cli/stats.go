package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/datacite/akita/internal/metrics"
	"github.com/datacite/akita/internal/model"
)

var (
	statsPerson bool
	statsJSON   bool
)

// statsCmd prints the portal statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show DataCite Commons statistics",
	Long: `Stats prints the number of works, how many are cited, claimed and
connected, and the per-type breakdown. With --person it prints the
statistics for works connected to people instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			w := cmd.OutOrStdout()
			if statsPerson {
				stats, err := a.client.PersonStats(ctx)
				if err != nil {
					return err
				}
				if statsJSON {
					return a.writeJSON(w, stats)
				}
				printPersonStats(w, stats)
				return nil
			}

			stats, err := a.client.Stats(ctx)
			if err != nil {
				return err
			}
			if statsJSON {
				return a.writeJSON(w, stats)
			}
			printStats(w, stats)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsPerson, "person", false, "statistics for works connected to people")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print raw statistics as JSON")
	statsCmd.Flags().DurationVar(&requestTimeout, "timeout", time.Minute, "request timeout")
}

func printStats(w io.Writer, s *model.Stats) {
	total := s.Total.TotalCount

	fmt.Fprintf(w, "Works\n")
	fmt.Fprintf(w, "  %-14s %12s\n", "total", metrics.Compact(total))
	fmt.Fprintf(w, "  %-14s %12s\n", "DataCite", metrics.Compact(s.Total.Agency(model.AgencyDataCite)))
	fmt.Fprintf(w, "  %-14s %12s\n", "Crossref", metrics.Compact(s.Total.Agency(model.AgencyCrossref)))
	statLine(w, "cited", s.Cited.TotalCount, total)
	statLine(w, "claimed", s.Claimed.TotalCount, total)
	statLine(w, "connected", s.Connected.TotalCount, total)

	fmt.Fprintf(w, "\nBy type\n")
	typeLine(w, "publications", s.Publications.TotalCount, s.CitedPublications.TotalCount)
	typeLine(w, "datasets", s.Datasets.TotalCount, s.CitedDatasets.TotalCount)
	typeLine(w, "software", s.Softwares.TotalCount, s.CitedSoftwares.TotalCount)

	fmt.Fprintf(w, "\n%s people · %s\n",
		metrics.Compact(s.People.TotalCount),
		metrics.Pluralize(s.Organizations.TotalCount, "Organization", true))
}

func printPersonStats(w io.Writer, s *model.PersonStats) {
	total := s.Total.TotalCount

	fmt.Fprintf(w, "%s people\n", metrics.Compact(s.People.TotalCount))
	fmt.Fprintf(w, "  %-14s %12s\n", "works", metrics.Compact(total))
	statLine(w, "claimed", s.Claimed.TotalCount, total)
	statLine(w, "cited", s.Cited.TotalCount, s.Claimed.TotalCount)
	statLine(w, "viewed", s.Viewed.TotalCount, s.Claimed.TotalCount)
	statLine(w, "downloaded", s.Downloaded.TotalCount, s.Claimed.TotalCount)
}

// statLine prints part with its share of whole
func statLine(w io.Writer, label string, part, whole int) {
	fmt.Fprintf(w, "  %-14s %12s  %8s\n", label, metrics.Compact(part), metrics.Percent(part, whole))
}

// typeLine prints a resource type total and the share of it that is cited
func typeLine(w io.Writer, label string, total, cited int) {
	fmt.Fprintf(w, "  %-14s %12s  %8s cited\n", label, metrics.Compact(total), metrics.Percent(cited, total))
}

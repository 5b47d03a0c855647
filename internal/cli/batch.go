package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/datacite/akita/internal/claim"
	"github.com/datacite/akita/internal/metrics"
	"github.com/datacite/akita/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd groups batch operations
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run operations over many works",
}

var batchClaimsCmd = &cobra.Command{
	Use:   "claims <file>",
	Short: "Claim every DOI listed in a file",
	Long: `Batch claims reads DOIs from a file (one per line, # starts a comment,
doi.org prefixes are accepted) and adds each work to the signed-in ORCID
record. Works already claimed or in progress are left alone. Requests are
rate limited per API host.

Example:
  akita batch claims dois.txt
  akita batch claims dois.txt --concurrency 8 --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchClaims,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchClaimsCmd)

	batchClaimsCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default concurrency.workers)")
	batchClaimsCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
}

func runBatchClaims(cmd *cobra.Command, args []string) error {
	file := args[0]

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if a.session.Current() == nil {
		return fmt.Errorf("%w (set AKITA_SESSION_TOKEN)", claim.ErrSignedOut)
	}

	workers := concurrency
	if workers <= 0 {
		workers = a.cfg.Concurrency.Workers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()
	ctx, stop := signalContext(ctx)
	defer stop()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Akita Batch Claims\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	reg := prometheus.NewRegistry()
	claimer := claim.NewClaimer(a.client, a.store, a.session, a.claimOptions(metrics.NewClaimMetrics(reg))...)

	processor := worker.NewBatchProcessor(claimer, workers)
	processor.OnResult(func(r *worker.ClaimResult) {
		if r.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.DOI, r.Error)
			return
		}
		fmt.Fprintf(os.Stderr, "✓ %s (%s, %s)\n", r.DOI, r.Claim.State, r.Duration.Round(time.Millisecond))
	})

	start := time.Now()
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			continue
		}
		successCount++
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %s\n", humanize.Comma(int64(len(results))))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Elapsed:   %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d claims failed", failureCount, len(results))
	}
	return nil
}

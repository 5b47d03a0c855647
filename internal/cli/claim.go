package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datacite/akita/internal/claim"
	"github.com/datacite/akita/internal/metrics"
)

var (
	claimJSON    bool
	claimWait    bool
	claimTimeout time.Duration
	metricsAddr  string
)

// claimCmd groups the claim subcommands
var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Add works to or remove them from an ORCID record",
	Long: `Claim commands follow the claim of one work.

Example:
  akita claim show 10.5061/dryad.8jd18
  akita claim create 10.5061/dryad.8jd18 --wait
  akita claim delete 10.5061/dryad.8jd18
  akita claim watch 10.5061/dryad.8jd18 --metrics-addr :9090`,
}

var claimShowCmd = &cobra.Command{
	Use:   "show <doi>",
	Short: "Show the claim state of a work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClaim(cmd, args[0], nil, func(ctx context.Context, a *app, s *claim.Synchronizer) error {
			return printView(cmd.OutOrStdout(), a, s.View())
		})
	},
}

var claimCreateCmd = &cobra.Command{
	Use:   "create <doi>",
	Short: "Add a work to the signed-in ORCID record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClaim(cmd, args[0], nil, func(ctx context.Context, a *app, s *claim.Synchronizer) error {
			_, err := s.Create(ctx)
			if err := explain(err); err != nil {
				_ = printView(cmd.OutOrStdout(), a, s.View())
				return err
			}
			if claimWait {
				waitSettled(ctx, s)
			}
			return printView(cmd.OutOrStdout(), a, s.View())
		})
	},
}

var claimDeleteCmd = &cobra.Command{
	Use:   "delete <doi>",
	Short: "Remove the displayed claim of a work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClaim(cmd, args[0], nil, func(ctx context.Context, a *app, s *claim.Synchronizer) error {
			_, err := s.Delete(ctx, s.View().Claim.ID)
			if err := explain(err); err != nil {
				_ = printView(cmd.OutOrStdout(), a, s.View())
				return err
			}
			if claimWait {
				waitSettled(ctx, s)
			}
			return printView(cmd.OutOrStdout(), a, s.View())
		})
	},
}

var claimWatchCmd = &cobra.Command{
	Use:   "watch <doi>",
	Short: "Print the claim state each time it changes until it settles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		m := metrics.NewClaimMetrics(reg)

		if metricsAddr != "" {
			srv := &http.Server{
				Addr:              metricsAddr,
				Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() { _ = srv.ListenAndServe() }()
			defer func() { _ = srv.Close() }()
		}

		return withClaim(cmd, args[0], m, func(ctx context.Context, a *app, s *claim.Synchronizer) error {
			last := claim.View{}
			for {
				v := s.View()
				if v.Action != last.Action || v.Claim.State != last.Claim.State || v.LoadError != last.LoadError {
					if err := printView(cmd.OutOrStdout(), a, v); err != nil {
						return err
					}
					last = v
				}
				if !s.Polling() {
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-s.Updates():
				}
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(claimCmd)
	claimCmd.AddCommand(claimShowCmd, claimCreateCmd, claimDeleteCmd, claimWatchCmd)

	claimCmd.PersistentFlags().BoolVar(&claimJSON, "json", false, "print the claim view as JSON")
	claimCmd.PersistentFlags().DurationVar(&claimTimeout, "timeout", 5*time.Minute, "overall timeout")
	claimCreateCmd.Flags().BoolVar(&claimWait, "wait", false, "keep polling until the claim leaves the waiting state")
	claimDeleteCmd.Flags().BoolVar(&claimWait, "wait", false, "keep polling until the claim leaves the waiting state")
	claimWatchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching")
}

// withClaim mounts a synchronizer for doi, loads it and runs fn
func withClaim(cmd *cobra.Command, doi string, m *metrics.ClaimMetrics, fn func(context.Context, *app, *claim.Synchronizer) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), claimTimeout)
	defer cancel()
	ctx, stop := signalContext(ctx)
	defer stop()

	s := a.synchronizer(doi, m)
	defer s.Close()

	if err := mount(ctx, cmd.OutOrStdout(), a, s); err != nil {
		a.logger.Debug("load failed", zap.String("doi", doi), zap.Error(err))
		return err
	}
	return fn(ctx, a, s)
}

// mount loads s. When the load fails the view's error panel is printed before
// the error is returned.
func mount(ctx context.Context, w io.Writer, a *app, s *claim.Synchronizer) error {
	err := s.Load(ctx)
	if err == nil {
		return nil
	}
	if v := s.View(); v.LoadError != "" {
		_ = printView(w, a, v)
	}
	return err
}

// waitSettled blocks until s stops polling or ctx ends
func waitSettled(ctx context.Context, s *claim.Synchronizer) {
	for s.Polling() {
		select {
		case <-ctx.Done():
			return
		case <-s.Updates():
		}
	}
}

// explain turns precondition errors into user-facing messages
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, claim.ErrSignedOut):
		return fmt.Errorf("%w (set AKITA_SESSION_TOKEN)", err)
	case errors.Is(err, claim.ErrUnavailable), errors.Is(err, claim.ErrNotDisplayed):
		return fmt.Errorf("nothing to do: %w", err)
	default:
		return err
	}
}

func printView(w io.Writer, a *app, v claim.View) error {
	if claimJSON {
		return a.writeJSON(w, v)
	}

	switch {
	case v.Hidden:
		_, err := fmt.Fprintln(w, "Claims are not available for this work.")
		return err
	case v.Loading:
		_, err := fmt.Fprintln(w, "Loading...")
		return err
	case v.LoadError != "":
		_, err := fmt.Fprintf(w, "Error: %s\n", v.LoadError)
		return err
	}

	line := fmt.Sprintf("state: %s", v.Claim.State)
	if v.Claim.ID != "" {
		line += fmt.Sprintf("  id: %s", v.Claim.ID)
	}
	if v.Claim.Claimed != nil {
		line += fmt.Sprintf("  claimed: %s", v.Claim.Claimed.Format(time.RFC3339))
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}

	switch v.Action {
	case claim.ActionStatus:
		_, _ = fmt.Fprintf(w, "  %s\n", v.Status)
	case claim.ActionSignIn:
		_, _ = fmt.Fprintf(w, "  [%s] (disabled)\n", v.Label)
	case claim.ActionCreate, claim.ActionDelete:
		_, _ = fmt.Fprintf(w, "  [%s]\n", v.Label)
	}
	if v.ErrorMsg != "" {
		_, _ = fmt.Fprintf(w, "  error: %s\n", v.ErrorMsg)
	}
	return nil
}

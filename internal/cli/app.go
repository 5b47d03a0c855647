package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/datacite/akita/internal/cache"
	"github.com/datacite/akita/internal/claim"
	"github.com/datacite/akita/internal/graphql"
	"github.com/datacite/akita/internal/metrics"
	"github.com/datacite/akita/internal/model"
	"github.com/datacite/akita/internal/session"
)

// app holds the services a command needs
type app struct {
	cfg     *model.Config
	logger  *zap.Logger
	client  *graphql.Client
	store   *cache.ClaimStore
	session *session.Static
	pretty  bool
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Output.Verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	sess := session.FromConfig(cfg.Session)
	client := graphql.NewClientFromConfig(cfg, session.Token(sess), logger)

	var store *cache.ClaimStore
	if cfg.Cache.Enabled {
		store = cache.NewClaimStore(cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL), cfg.Cache.DiskTTL)
	} else {
		store = cache.NewMemoryClaimStore()
	}

	pretty := cfg.Output.Pretty
	if compact, _ := cmd.Flags().GetBool("compact"); compact {
		pretty = false
	}

	logger.Debug("config loaded",
		zap.String("endpoint", cfg.API.Endpoint),
		zap.Bool("signed_in", sess.Current() != nil),
		zap.Bool("cache", cfg.Cache.Enabled))

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		store:   store,
		session: sess,
		pretty:  pretty,
	}, nil
}

// synchronizer creates a claim synchronizer for doi using configured options
func (a *app) synchronizer(doi string, m *metrics.ClaimMetrics) *claim.Synchronizer {
	return claim.New(doi, a.client, a.store, a.session, a.claimOptions(m)...)
}

func (a *app) claimOptions(m *metrics.ClaimMetrics) []claim.Option {
	return []claim.Option{
		claim.WithPollInterval(a.cfg.Claim.PollInterval),
		claim.WithSourceID(a.cfg.Claim.SourceID),
		claim.WithClaimableAgency(a.cfg.Claim.ClaimableAgency),
		claim.WithLogger(a.logger),
		claim.WithMetrics(m),
	}
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// writeJSON prints v as JSON
func (a *app) writeJSON(w io.Writer, v any) error {
	var (
		data []byte
		err  error
	)
	if a.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// signalContext is cancelled on interrupt or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

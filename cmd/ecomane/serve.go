package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/ecomane/internal/coordinator"
	"github.com/jgoulah/ecomane/internal/metrics"
	"github.com/jgoulah/ecomane/internal/scraper"
	"github.com/jgoulah/ecomane/internal/server"
)

var (
	serveListen    string
	serveNoPublish bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll continuously and serve the latest readings",
	Long: `Blocks until the device answers once (retrying every polling.retry_interval),
then polls every polling.interval. The latest snapshot is served over HTTP
(JSON API and Prometheus /metrics), stored in SQLite and published to MQTT /
Home Assistant when those outputs are enabled.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides http.listen)")
	serveCmd.Flags().BoolVar(&serveNoPublish, "no-publish", false, "Do not publish to MQTT / Home Assistant")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveListen != "" {
		cfg.HTTP.Listen = serveListen
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := scraper.NewFromConfig(cfg.Device, logger.Named("scraper"))
	if err != nil {
		return fmt.Errorf("creating scraper: %w", err)
	}
	coord := coordinator.New(client, cfg.Polling.RetryInterval, logger.Named("coordinator"))

	out, err := setupOutputs(cfg, logger, true, !serveNoPublish)
	if err != nil {
		return err
	}
	defer out.Close()
	out.attach(coord)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(coord, logger.Named("metrics")),
	)

	var history server.History
	if out.db != nil {
		history = out.db
	}
	srv := server.New(cfg.HTTP.Listen, coord, history, reg, logger.Named("http"))

	g, ctx := errgroup.WithContext(cmd.Context())

	// health reports "starting" until the first refresh succeeds
	g.Go(func() error {
		return srv.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("Waiting for first refresh",
			zap.String("device", cfg.Device.BaseURL()),
			zap.Duration("retryInterval", cfg.Polling.RetryInterval))
		if err := coord.FirstRefresh(ctx); err != nil {
			return err
		}
		return runSchedule(ctx, coord, cfg.Polling.Interval, logger)
	})

	// errgroup cancels ctx on the first error, so check the parent for shutdown
	if err := g.Wait(); err != nil && cmd.Context().Err() == nil {
		return err
	}
	logger.Info("Stopped")
	return nil
}

// runSchedule refreshes every interval until ctx is done
func runSchedule(ctx context.Context, coord *coordinator.Coordinator, interval time.Duration, logger *zap.Logger) error {
	cl := cronLogger{logger.Named("cron").Sugar()}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		// failures are logged and recorded by the coordinator, the previous
		// snapshot stays in place
		_ = coord.Refresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling refresh: %w", err)
	}

	logger.Info("Polling", zap.Duration("interval", interval))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

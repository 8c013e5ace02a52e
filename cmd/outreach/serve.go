package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/lead-outreach/internal/api"
	"github.com/LeventeLantos/lead-outreach/internal/importer"
	"github.com/LeventeLantos/lead-outreach/internal/model"
	"github.com/LeventeLantos/lead-outreach/internal/queue"
	"github.com/LeventeLantos/lead-outreach/internal/scheduler"
	"github.com/LeventeLantos/lead-outreach/internal/service"
)

const shutdownTimeout = 10 * time.Second

const (
	jobFirstFollowUp  = "first_follow_up"
	jobSecondFollowUp = "second_follow_up"
	jobRefreshStats   = "refresh_stats"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the provider webhook and the follow-up sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	a, err := c.buildApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	jobs, err := c.registerJobs(a)
	if err != nil {
		return err
	}
	defer jobs.StopAll()

	deps := api.Deps{
		Leads:      a.store,
		Campaigns:  a.runner,
		Events:     a.replies,
		Importer:   importer.New(a.store, c.log.With(zap.String("component", "importer"))),
		Templates:  a.templates,
		Classifier: a.classifier,
		Jobs:       jobs,
		Metrics:    a.metrics.Handler(),
		Log:        c.log.With(zap.String("component", "api")),
	}

	g, gctx := errgroup.WithContext(ctx)

	if c.cfg.AMQP.Enabled {
		mq, err := queue.Dial(c.cfg.AMQP.URL, c.cfg.AMQP.Queue)
		if err != nil {
			return err
		}
		defer func() { _ = mq.Close() }()

		consumeCh, err := mq.Conn.Channel()
		if err != nil {
			return fmt.Errorf("open consumer channel: %w", err)
		}
		consumer := queue.NewConsumer(consumeCh, mq.Queue, a.replies, c.log)
		g.Go(func() error { return consumer.Run(gctx) })

		deps.Queue = queue.NewProducer(mq.Ch)
		c.log.Info("webhook events buffered through rabbitmq", zap.String("queue", mq.Queue))
	}

	router := api.Router(api.NewHandler(deps), api.RouterOptions{
		AllowedOrigins: c.cfg.Server.AllowedOrigins,
		Middleware: []func(http.Handler) http.Handler{
			loggingMiddleware(c.log.With(zap.String("component", "http"))),
			a.metrics.Middleware,
		},
	})

	srv := &http.Server{
		Addr:              c.cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		c.log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		c.log.Info("shutting down")
		jobs.StopAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// registerJobs creates the periodic jobs. The follow-up sweeps only start
// when automatic follow-ups are enabled; they can be toggled over HTTP.
func (c *cli) registerJobs(a *app) (*scheduler.Registry, error) {
	jobs := scheduler.NewRegistry()

	sweep := func(stage model.Stage) func(context.Context) {
		return func(ctx context.Context) {
			if _, err := a.runner.Run(ctx, service.RunRequest{Stage: stage}); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Error("follow-up sweep failed", zap.String("stage", string(stage)), zap.Error(err))
			}
		}
	}

	refresh := func(ctx context.Context) {
		st, err := a.store.Stats(ctx)
		if err != nil {
			c.log.Warn("refresh lead stats", zap.Error(err))
			return
		}
		a.metrics.SetLeadStats(st)
	}

	defs := []struct {
		name      string
		interval  time.Duration
		tick      func(context.Context)
		autostart bool
		opts      []scheduler.Option
	}{
		{jobFirstFollowUp, c.cfg.Scheduler.FirstInterval, sweep(model.StageFirstFollowUp), c.cfg.Scheduler.AutoFollowUp, []scheduler.Option{scheduler.WithoutImmediateTick()}},
		{jobSecondFollowUp, c.cfg.Scheduler.SecondInterval, sweep(model.StageSecondFollowUp), c.cfg.Scheduler.AutoFollowUp, []scheduler.Option{scheduler.WithoutImmediateTick()}},
		{jobRefreshStats, c.cfg.Scheduler.RefreshInterval, refresh, true, nil},
	}

	for _, s := range defs {
		opts := append([]scheduler.Option{scheduler.WithLogger(c.log)}, s.opts...)
		job, err := scheduler.New(s.name, s.interval, s.tick, opts...)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", s.name, err)
		}
		if err := jobs.Register(job); err != nil {
			return nil, err
		}
		if s.autostart {
			job.Start()
		}
	}
	return jobs, nil
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LeventeLantos/lead-outreach/internal/cache"
	"github.com/LeventeLantos/lead-outreach/internal/classifier"
	"github.com/LeventeLantos/lead-outreach/internal/client"
	"github.com/LeventeLantos/lead-outreach/internal/metrics"
	"github.com/LeventeLantos/lead-outreach/internal/outreach"
	"github.com/LeventeLantos/lead-outreach/internal/repo"
	"github.com/LeventeLantos/lead-outreach/internal/service"
	"github.com/LeventeLantos/lead-outreach/internal/templates"
)

// app holds the wired components shared by the sending commands.
type app struct {
	store      *repo.SQLLeadRepo
	templates  *templates.Store
	classifier *classifier.Classifier
	runner     *service.Runner
	replies    *service.ReplyHandler
	metrics    *metrics.Metrics
	rdb        *redis.Client
}

func (a *app) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func (c *cli) openStore(ctx context.Context) (*repo.SQLLeadRepo, error) {
	store, err := repo.Open(ctx, c.cfg.Database.Driver, c.cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (c *cli) loadTemplates() (*templates.Store, error) {
	opts := []templates.Option{
		templates.WithSandboxPrefix(c.cfg.Templates.SandboxPrefix),
		templates.WithFallbackInterest(c.cfg.Templates.InterestFallback),
	}
	if path := c.cfg.Templates.File; path != "" {
		c.log.Info("loading template catalog", zap.String("path", path))
		return templates.LoadFile(path, opts...)
	}
	return templates.Default(opts...)
}

func (c *cli) policy() outreach.Policy {
	return outreach.Policy{
		FirstFollowUpDelay:  c.cfg.Outreach.FirstFollowUpDelay,
		SecondFollowUpDelay: c.cfg.Outreach.SecondFollowUpDelay,
		MinCoolingPeriod:    c.cfg.Outreach.MinCoolingPeriod,
		RecentUpdateGuard:   c.cfg.Outreach.RecentUpdateGuard,
	}
}

func (c *cli) buildApp(ctx context.Context) (*app, error) {
	if err := c.cfg.RequireTwilio(); err != nil {
		return nil, err
	}

	tmpl, err := c.loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{
		store:      store,
		templates:  tmpl,
		classifier: classifier.New(classifier.WithRecommender(tmpl.FirstID)),
		metrics:    metrics.New(nil),
	}

	transport := client.NewTwilioClient(client.TwilioConfig{
		BaseURL:        c.cfg.Twilio.BaseURL,
		AccountSID:     c.cfg.Twilio.AccountSID,
		AuthToken:      c.cfg.Twilio.AuthToken,
		From:           c.cfg.Twilio.From,
		StatusCallback: c.cfg.Twilio.StatusCallback,
		Timeout:        c.cfg.Twilio.Timeout,
	})

	opts := []service.RunnerOption{
		service.WithWorkers(c.cfg.Campaign.Workers),
		service.WithLogger(c.log.With(zap.String("component", "runner"))),
		service.WithObserver(a.metrics),
	}

	if c.cfg.Redis.Enabled {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     c.cfg.Redis.Address,
			Password: c.cfg.Redis.Password,
			DB:       c.cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		opts = append(opts,
			service.WithLeases(cache.NewRedisLeases(a.rdb), c.cfg.Campaign.LeaseTTL),
			service.WithSentIndex(cache.NewRedisCache(a.rdb, c.cfg.Redis.TTL)),
		)
		c.log.Info("redis enabled", zap.String("addr", c.cfg.Redis.Address))
	} else {
		opts = append(opts, service.WithLeases(cache.NewLocalLeases(), c.cfg.Campaign.LeaseTTL))
	}

	sender := service.NewSender(transport, c.cfg.Campaign.ContentMax)
	a.runner = service.NewRunner(store, sender, tmpl, c.policy(), opts...)
	a.replies = service.NewReplyHandler(store, a.runner, a.classifier)
	return a, nil
}

// Package app assembles the controllers from configuration. Both binaries
// build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"beacon/internal/clock"
	awsclient "beacon/internal/common/aws"
	"beacon/internal/common/camunda"
	"beacon/internal/common/config"
	"beacon/internal/common/database"
	"beacon/internal/common/logger"
	"beacon/internal/common/observability"
	"beacon/internal/events"
	"beacon/internal/notify"
	"beacon/internal/notify/mail"
	"beacon/internal/opportunity"
	"beacon/internal/qa"
	"beacon/internal/search"
	"beacon/internal/store/postgres"
	"beacon/internal/vendor"
)

// Retry runs op until it succeeds or attempts run out, doubling delay after
// each failure.
func Retry(op func() error, attempts int, delay time.Duration, log logger.Logger, name string) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i < attempts-1 {
			log.Warn(name+" failed, retrying", map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxAttempts": attempts,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
}

// App holds the connected clients and the controllers built on them.
type App struct {
	Config *config.Config
	Logger logger.Logger

	Postgres *database.PostgresClient
	Redis    *database.RedisClient
	Search   *search.Indexer
	Camunda  *camunda.Client

	Store         *postgres.Store
	Mailer        notify.Mailer
	Dispatcher    *notify.Dispatcher
	Opportunities *opportunity.Controller
	Questions     *qa.Controller
	Vendors       *vendor.Service

	closers []func() error
}

// Options tune how much of the stack Build connects.
type Options struct {
	// Attempts for each startup connection; 1 means no retry.
	Attempts int
	Tracer   trace.Tracer
}

// Build connects Postgres and whichever optional backends cfg enables, then
// wires the controllers. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (_ *App, err error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}

	a := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if opts.Tracer == nil {
		obs := observability.New(cfg.App.Name)
		a.closers = append(a.closers, func() error { obs.Shutdown(); return nil })
		opts.Tracer = obs.Tracer()
	}

	err = Retry(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		a.Postgres = pg
		return nil
	}, opts.Attempts, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Postgres.Close)
	a.Store = postgres.New(a.Postgres)

	var dispatchOpts []notify.DispatcherOption
	if cfg.Dedup.Enabled {
		a.Redis = database.NewRedis(cfg.Database.Redis)
		a.closers = append(a.closers, a.Redis.Close)
		if err = Retry(func() error { return a.Redis.Ping(ctx) }, opts.Attempts, 2*time.Second, log, "Redis connection"); err != nil {
			return nil, err
		}
		ttl := time.Duration(cfg.Dedup.TTL) * time.Second
		dispatchOpts = append(dispatchOpts, notify.WithLedger(notify.NewRedisLedger(a.Redis.Client, ttl)))
	}

	var starter mail.ProcessStarter
	if cfg.Mail.Transport == config.TransportZeebe {
		a.Camunda, err = camunda.NewClient(camunda.ConfigFrom(cfg.Camunda))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.Camunda.Close)
		starter = a.Camunda
	}
	if a.Mailer, err = mail.New(ctx, cfg, starter, log); err != nil {
		return nil, err
	}

	templates, err := notify.LoadTemplates()
	if err != nil {
		return nil, err
	}
	a.Dispatcher = notify.NewDispatcher(a.Mailer, templates, notify.DispatcherConfig{
		From:          cfg.Mail.FromEmail,
		ReplyTo:       cfg.Mail.ReplyTo,
		SubjectPrefix: cfg.Mail.SubjectPrefix,
	}, log, dispatchOpts...)

	publisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var index opportunity.SearchIndex
	if cfg.Search.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		if err := Retry(func() error { return es.Ping(ctx) }, opts.Attempts, 2*time.Second, log, "Elasticsearch connection"); err != nil {
			return nil, err
		}
		a.Search = search.NewIndexer(es.Client, cfg.Search.Index, log)
		index = a.Search
	}

	loc := cfg.Beacon.Location()
	window := clock.NewWindow(loc)
	clk := clock.NewReal()
	views := notify.NewViews(cfg.Beacon.BaseURL, loc)
	resolver := notify.NewResolver(
		notify.WithReviewRoles(cfg.Beacon.ReviewRoles),
		notify.WithDirectSubscribers(cfg.Beacon.IncludeDirectSubscribers),
	)

	a.Opportunities = opportunity.NewController(opportunity.Dependencies{
		Store:    a.Store,
		Resolver: resolver,
		Sender:   a.Dispatcher,
		Views:    views,
		Clock:    clk,
		Window:   window,
		Logger:   log,
		Events:   publisher,
		Index:    index,
		Tracer:   opts.Tracer,
	}, opportunity.Policy{
		ApproverRoles:   cfg.Beacon.ApproverRoles,
		StrictDateOrder: cfg.Beacon.StrictDateOrder,
	})

	a.Questions = qa.NewController(qa.Dependencies{
		Store:    a.Store,
		Access:   a.Opportunities.Access(),
		State:    a.Opportunities.State(),
		Resolver: resolver,
		Sender:   a.Dispatcher,
		Views:    views,
		Clock:    clk,
		Logger:   log,
		Events:   publisher,
		Tracer:   opts.Tracer,
	})

	a.Vendors = vendor.NewService(vendor.Dependencies{
		Store:      a.Store,
		Sender:     a.Dispatcher,
		Views:      views,
		Clock:      clk,
		Logger:     log,
		Events:     publisher,
		AdminRoles: cfg.Beacon.AdminRoles,
	})

	log.Info("Application wired", map[string]interface{}{
		"mailTransport": cfg.Mail.Transport,
		"dedup":         cfg.Dedup.Enabled,
		"search":        cfg.Search.Enabled,
		"events":        cfg.Events.SNS.Enabled,
		"timezone":      loc.String(),
	})
	return a, nil
}

func newPublisher(ctx context.Context, cfg *config.Config, log logger.Logger) (events.Publisher, error) {
	if !cfg.Events.SNS.Enabled {
		return events.Nop{}, nil
	}
	client, err := awsclient.NewSNSClient(ctx, cfg.Events.SNS.Region)
	if err != nil {
		return nil, err
	}
	return events.NewSNSPublisher(client, cfg.Events.SNS.TopicARN, log), nil
}

// Close releases every connection Build opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}

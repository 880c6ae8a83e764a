package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/owt-mfg/erpsync/config"
	"github.com/owt-mfg/erpsync/internal/data"
	"github.com/owt-mfg/erpsync/internal/domain/retry"
	"github.com/owt-mfg/erpsync/internal/erp"
	"github.com/owt-mfg/erpsync/internal/observability/statsd"
	"github.com/owt-mfg/erpsync/internal/service"
	"github.com/owt-mfg/erpsync/internal/sink"
)

// Services holds the constructed pipeline services and their shared
// dependencies. Only the services enabled in the configuration are run;
// everything is constructed regardless so the HTTP control surface can
// reach the fetcher and job stats even in mixed deployments.
type Services struct {
	Config *config.AppConfig
	Logger *slog.Logger

	Jobs    *data.SyncJobRepo
	Fetcher *service.FetcherService
	Worker  *service.WorkerService
	Reaper  *service.ReaperService

	metrics *statsd.Client
}

// BuildServices constructs repositories, clients, and services from
// configuration and connected infrastructure.
func BuildServices(
	cfg *config.AppConfig,
	db *sql.DB,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
) (*Services, error) {
	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.IsEnabled(),
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  cfg.Observability.Metrics.StatsdPrefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create statsd client: %w", err)
	}

	policy, err := retry.NewPolicy(cfg.Worker.RetryStep, cfg.Worker.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("create retry policy: %w", err)
	}

	rawRepo := data.NewRawRepo(db, data.RawRepoConfig{Logger: logger})
	jobRepo := data.NewSyncJobRepo(db, data.SyncJobRepoConfig{
		Logger:      logger,
		RetryPolicy: policy,
	})
	pushLogRepo := data.NewPushLogRepo(db, data.PushLogRepoConfig{Logger: logger})

	erpClient, err := erp.NewClient(erp.Config{
		APIURL:             cfg.ERP.APIURL,
		TxnType:            cfg.ERP.TxnType,
		Timeout:            cfg.ERP.Timeout,
		InsecureSkipVerify: cfg.ERP.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("create erp client: %w", err)
	}

	sinkClient, err := sink.NewClient(sink.Config{
		BaseURL:    cfg.Sink.BaseURL,
		Token:      cfg.Sink.Token,
		Collection: cfg.Sink.Collection(),
		Timeout:    cfg.Sink.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create sink client: %w", err)
	}

	transformer, err := service.NewTransformer()
	if err != nil {
		return nil, fmt.Errorf("create transformer: %w", err)
	}

	ingestService, err := service.NewIngestService(service.IngestServiceOptions{
		ERP:     erpClient,
		Records: rawRepo,
		Jobs:    jobRepo,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create ingest service: %w", err)
	}

	fetcherService, err := service.NewFetcherService(service.FetcherServiceOptions{
		Ingest:  ingestService,
		Config:  cfg.Fetcher,
		ERP:     cfg.ERP,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create fetcher service: %w", err)
	}

	workerOpts := service.WorkerServiceOptions{
		Jobs:        jobRepo,
		PushLog:     pushLogRepo,
		Sink:        sinkClient,
		Transformer: transformer,
		Config:      cfg.Worker,
		Logger:      logger,
		Metrics:     metrics,
	}
	if redisClient != nil {
		workerOpts.Cache = data.NewSinkKeyCache(redisClient, cfg.Redis.KeyTTL)
	}
	workerService, err := service.NewWorkerService(workerOpts)
	if err != nil {
		return nil, fmt.Errorf("create worker service: %w", err)
	}

	reaperService, err := service.NewReaperService(service.ReaperServiceOptions{
		Jobs:    jobRepo,
		Config:  cfg.Reaper,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create reaper service: %w", err)
	}

	return &Services{
		Config:  cfg,
		Logger:  logger,
		Jobs:    jobRepo,
		Fetcher: fetcherService,
		Worker:  workerService,
		Reaper:  reaperService,
		metrics: metrics,
	}, nil
}

// Run starts the enabled services and blocks until a termination signal
// arrives or any service fails. The shared context is cancelled on the
// first failure so the remaining services wind down together.
func (s *Services) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() { _ = s.metrics.Close() }()

	group, ctx := errgroup.WithContext(ctx)

	if s.Config.IsFetcherEnabled() {
		s.Logger.Info("starting fetcher service")
		group.Go(func() error {
			return s.Fetcher.Run(ctx)
		})
	}
	if s.Config.IsWorkerEnabled() {
		s.Logger.Info("starting worker service")
		group.Go(func() error {
			return s.Worker.Run(ctx)
		})
	}
	if s.Config.IsReaperEnabled() {
		s.Logger.Info("starting reaper service")
		group.Go(func() error {
			return s.Reaper.Run(ctx)
		})
	}
	if s.Config.IsHTTPServerEnabled() {
		group.Go(func() error {
			return RunHTTPServer(ctx, s)
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("service exited: %w", err)
	}
	s.Logger.Info("all services stopped")
	return nil
}

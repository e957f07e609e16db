package di

import (
	"context"
	"fmt"
	"time"

	domrepo "PetroPulse/internal/domain/repository"
	domsvc "PetroPulse/internal/domain/service"
	"PetroPulse/internal/handler/api"
	internalrepo "PetroPulse/internal/repository"
	"PetroPulse/internal/services/anomaly"
	"PetroPulse/internal/services/forecast"
	"PetroPulse/internal/services/prep"
	"PetroPulse/internal/usecase"
	"PetroPulse/pkg/cache"
	pkgch "PetroPulse/pkg/clickhouse"
	"PetroPulse/pkg/config"
	xhttp "PetroPulse/pkg/http"
	pkgkafka "PetroPulse/pkg/kafka"
	applogger "PetroPulse/pkg/logger"
	"PetroPulse/pkg/metrics"
	"PetroPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvidePreprocessor creates the shared input preprocessor.
func ProvidePreprocessor(cfg *config.Config) domsvc.Preprocessor {
	return prep.New(prep.Config{
		Window: cfg.Analytics.Window,
		Lags:   cfg.Analytics.Lags,
		MaxGap: cfg.Analytics.MaxGap,
		Step:   cfg.Analytics.Step,
	})
}

// ProvideForecaster creates the forecast ensemble.
func ProvideForecaster(cfg *config.Config) domsvc.Forecaster {
	return forecast.New(forecast.Config{
		Horizon:      cfg.Analytics.Horizon,
		BoundSigma:   cfg.Analytics.BoundSigma,
		Seed:         cfg.Analytics.Seed,
		MinTrainRows: cfg.Analytics.MinTrainRows,
		Window:       cfg.Analytics.Window,
	})
}

// ProvideAnomalyScorer creates the anomaly detector.
func ProvideAnomalyScorer(cfg *config.Config, l *applogger.Logger) domsvc.AnomalyScorer {
	return anomaly.New(anomaly.Config{
		Trees:       cfg.Analytics.Anomaly.Trees,
		SampleSize:  cfg.Analytics.Anomaly.SampleSize,
		Threshold:   cfg.Analytics.Anomaly.Threshold,
		Seed:        cfg.Analytics.Seed,
		MinBaseline: cfg.Analytics.Anomaly.MinBaseline,
	}, l)
}

// ProvideClickHouseArchive creates the ClickHouse result archive, or nil
// when disabled.
func ProvideClickHouseArchive(cfg *config.Config, l *applogger.Logger) (*internalrepo.CHResultArchive, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ArchiveSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return internalrepo.NewCHResultArchive(client, cfg.ClickHouse.Database, l), nil
}

// ProvideAlertPublisher creates the Kafka alert publisher, or nil when
// disabled.
func ProvideAlertPublisher(cfg *config.Config, l *applogger.Logger) (*internalrepo.KafkaAlertPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertsTopic, l), nil
}

// ProvideSnapshotCache creates the snapshot publisher backed by Redis,
// falling back to the in-process cache when Redis is disabled.
func ProvideSnapshotCache(cfg *config.Config, l *applogger.Logger) (domrepo.SnapshotCache, func() error, error) {
	var svc cache.Service
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix("petropulse"),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		svc = rc
	} else {
		svc = cache.NewMemoryCache()
	}

	return internalrepo.NewCachedSnapshotPublisher(svc, cfg.Redis.TTL, l), svc.Close, nil
}

// ProvideModelStore creates the file-based model store, or nil when no
// directory is configured.
func ProvideModelStore(cfg *config.Config) (domrepo.ModelStore, error) {
	if cfg.ModelDir == "" {
		return nil, nil
	}
	return internalrepo.NewFileModelStore(cfg.ModelDir)
}

// ProvideSnapshotStream creates the websocket fan-out hub.
func ProvideSnapshotStream(l *applogger.Logger) *api.SnapshotStream {
	return api.NewSnapshotStream(l)
}

// ProvideOrchestrator wires the analytics orchestrator with its sinks.
func ProvideOrchestrator(
	cfg *config.Config,
	pre domsvc.Preprocessor,
	forecaster domsvc.Forecaster,
	scorer domsvc.AnomalyScorer,
	archive *internalrepo.CHResultArchive,
	alerts *internalrepo.KafkaAlertPublisher,
	snapCache domrepo.SnapshotCache,
	store domrepo.ModelStore,
	stream *api.SnapshotStream,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Orchestrator {
	sinks := usecase.Sinks{
		Cache:  snapCache,
		Models: store,
		Notify: stream.Broadcast,
	}
	// nil interface values must stay nil, not wrap nil pointers
	if archive != nil {
		sinks.Archive = archive
	}
	if alerts != nil {
		sinks.Alerts = alerts
	}

	return usecase.NewOrchestrator(pre, forecaster, scorer, sinks, m, l, cfg.Analytics.Horizon)
}

// ProvideHandler creates the HTTP handler with its stream and health probe.
func ProvideHandler(
	cfg *config.Config,
	orch *usecase.Orchestrator,
	forecaster domsvc.Forecaster,
	store domrepo.ModelStore,
	archive *internalrepo.CHResultArchive,
	stream *api.SnapshotStream,
	l *applogger.Logger,
) *api.AnalyticsEchoHandler {
	h := api.NewAnalyticsEchoHandler(l, orch, cfg.Refresh.RateCapacity, cfg.Refresh.RateRefill)
	h.SetStream(stream)
	if archive != nil {
		h.SetHealthCheck(archive.Health)
	}
	if store != nil {
		h.SetModelStore(forecaster, store)
	}
	return h
}

// ProvideApp assembles the application server and its shutdown hooks.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.AnalyticsEchoHandler,
	stream *api.SnapshotStream,
	archive *internalrepo.CHResultArchive,
	alerts *internalrepo.KafkaAlertPublisher,
	cacheClose func() error,
) *server.App {
	app := server.New(cfg, l, handler)

	app.AddCloser("snapshot stream", func() error {
		stream.Close()
		return nil
	})
	if alerts != nil {
		app.AddCloser("kafka alerts", alerts.Close)
	}
	if archive != nil {
		app.AddCloser("clickhouse archive", archive.Close)
	}
	if cacheClose != nil {
		app.AddCloser("snapshot cache", cacheClose)
	}

	return app
}

var _ xhttp.Handler = (*api.AnalyticsEchoHandler)(nil)

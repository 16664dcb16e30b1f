package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"

	"github.com/absmach/flcoord"
	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/coordinator/api"
	"github.com/absmach/flcoord/coordinator/middleware"
	"github.com/absmach/flcoord/pkg/artifact"
	"github.com/absmach/flcoord/pkg/distributor"
	"github.com/absmach/flcoord/pkg/fl"
	"github.com/absmach/flcoord/pkg/mqtt"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/storage"
	"github.com/absmach/flcoord/pkg/trainer"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "7071"
	envPrefixHTTP = "FLCOORD_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel   string  `env:"FLCOORD_LOG_LEVEL"   envDefault:"info"`
	InstanceID string  `env:"FLCOORD_INSTANCE_ID"`
	ConfigFile string  `env:"FLCOORD_CONFIG_FILE"`
	ChunkSize  int     `env:"FLCOORD_CHUNK_SIZE"  envDefault:"65536"`
	OTELURL    url.URL `env:"FLCOORD_OTEL_URL"`
	TraceRatio float64 `env:"FLCOORD_TRACE_RATIO" envDefault:"0"`
	Storage    storage.Config
	MQTT       mqtt.Config
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	fedCfg, err := loadFederation(cfg.ConfigFile)
	if err != nil {
		logger.Error("failed to load federation configuration", slog.String("error", err.Error()))

		return
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	st, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("type", cfg.Storage.Type), slog.String("error", err.Error()))

		return
	}
	defer st.Close()

	pubsub := mqtt.NewNoopPubSub()
	if cfg.MQTT.Address != "" {
		pubsub, err = mqtt.NewPubSub(cfg.MQTT, svcName+"-"+cfg.InstanceID, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Warn("failed to disconnect mqtt pubsub", slog.Any("error", err))
			}
		}()
	}

	layout := fedCfg.Layout()
	codec, err := artifact.NewCBORCodec(fedCfg.ModelShapes(), uint64(fedCfg.Model.Seed))
	if err != nil {
		logger.Error("failed to initialize model codec", slog.String("error", err.Error()))

		return
	}

	store := status.NewStore(st, fedCfg.Clients)
	history := round.NewHistory(st)
	dist := distributor.New(layout, store, logger, distributor.WithChunkSize(cfg.ChunkSize))
	tr := trainer.NewProcessTrainer(layout, fedCfg.TrainerConfig(), logger)
	orch := round.NewOrchestrator(layout, codec, tr, fl.NewFedAvgAggregator(), history, fedCfg.Clients, logger)

	svc := coordinator.NewService(layout, store, dist, orch, history, pubsub, cfg.MQTT.TopicPrefix, logger)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Subscribe(ctx); err != nil {
		logger.Error("failed to subscribe to client acknowledgements", slog.String("error", err.Error()))

		return
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	logger.Info("coordinator configured",
		slog.String("data_root", layout.Root),
		slog.Any("clients", fedCfg.Clients),
		slog.String("storage", cfg.Storage.Type),
	)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

// loadFederation reads the optional TOML file and applies environment
// overrides on top of it.
func loadFederation(path string) (flcoord.Config, error) {
	cfg := flcoord.DefaultConfig()
	if path != "" {
		fileCfg, err := flcoord.LoadConfig(path)
		if err != nil {
			return flcoord.Config{}, err
		}
		cfg = *fileCfg
	}

	if err := cfg.ApplyEnv(); err != nil {
		return flcoord.Config{}, err
	}

	return cfg, nil
}

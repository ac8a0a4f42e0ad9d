package app

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/you-humble/videovault/internal/extractor"
	"github.com/you-humble/videovault/internal/infra/config"
	"github.com/you-humble/videovault/internal/infra/queue"
	filestore "github.com/you-humble/videovault/internal/infra/store/file"
	jobstore "github.com/you-humble/videovault/internal/infra/store/job"
	"github.com/you-humble/videovault/internal/jobs"
	mio "github.com/you-humble/videovault/internal/libs/minio"
	natsq "github.com/you-humble/videovault/internal/libs/nats"
	rediscli "github.com/you-humble/videovault/internal/libs/redis"
	"github.com/you-humble/videovault/internal/metrics"
	"github.com/you-humble/videovault/internal/transport"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCfgPath = "./configs/local.yaml"
	downloadStream = "VIDEO_DOWNLOADS"
)

type Router interface {
	MountRoutes(*http.ServeMux) *http.ServeMux
}

type dependencyInjector struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	redis    *redis.Client
	jobStore jobs.Store

	fileStore jobs.FileStore

	natsConn *nats.Conn
	js       nats.JetStreamContext

	jobQueue jobs.Queue

	invoker    jobs.Invoker
	manager    *jobs.Manager
	dispatcher *jobs.Dispatcher
	janitor    *jobs.Janitor

	handler transport.Handler
	router  Router

	closers []io.Closer
}

func newDI() *dependencyInjector {
	return &dependencyInjector{}
}

func (di *dependencyInjector) Config() *config.Config {
	if di.cfg == nil {
		path := os.Getenv("CONFIG_PATH")
		if path == "" {
			path = defaultCfgPath
		}
		di.cfg = config.MustLoad(path)
	}

	return di.cfg
}

func (di *dependencyInjector) Logger() *slog.Logger {
	if di.logger == nil {
		level := slog.LevelInfo
		if di.Config().LogLevel == "debug" {
			level = slog.LevelDebug
		}
		di.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
	}

	slog.SetDefault(di.logger)
	return di.logger
}

func (di *dependencyInjector) Metrics() *metrics.Metrics {
	if di.metrics == nil {
		di.metrics = metrics.New()
	}
	return di.metrics
}

func (di *dependencyInjector) RedisClient(ctx context.Context) *redis.Client {
	if di.redis == nil {
		cfg := di.Config().Redis
		client, err := rediscli.NewClient(rediscli.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			log.Fatalf("redis client: %+v", err)
		}

		di.redis = client
		di.Logger().Info("connected to redis", slog.String("addr", cfg.Addr))
	}
	return di.redis
}

func (di *dependencyInjector) JobStore(ctx context.Context) jobs.Store {
	if di.jobStore == nil {
		cfg := di.Config()
		switch cfg.JobStore {
		case "redis":
			di.jobStore = jobstore.NewRedisStore(di.RedisClient(ctx))
		case "sqlite":
			store, err := jobstore.NewSQLiteStore(cfg.SQLite.Path)
			if err != nil {
				log.Fatalf("sqlite job store: %+v", err)
			}
			di.closers = append(di.closers, store)
			di.jobStore = store
			di.Logger().Info("using sqlite job store", slog.String("path", cfg.SQLite.Path))
		default:
			di.jobStore = jobstore.NewMemoryStore()
			di.Logger().Warn("using in-memory job store, records will not survive restarts")
		}
	}
	return di.jobStore
}

func (di *dependencyInjector) FileStore(ctx context.Context) jobs.FileStore {
	if di.fileStore == nil {
		cfg := di.Config()

		switch cfg.FileStore {
		case "minio":
			remote, err := filestore.NewMinIOStore(ctx, mio.Config{
				Endpoint:        cfg.MinIO.Endpoint,
				AccessKeyID:     cfg.MinIO.AccessKeyID,
				SecretAccessKey: cfg.MinIO.SecretAccessKey,
				UseSSL:          cfg.MinIO.UseSSL,
				Bucket:          cfg.MinIO.Bucket,
			})
			if err != nil {
				log.Fatalf("FileStore minio: %+v", err)
			}
			di.fileStore = remote
			di.Logger().Info(
				"initialized MinIO file store",
				slog.String("endpoint", cfg.MinIO.Endpoint),
				slog.String("bucket", cfg.MinIO.Bucket),
			)
		default:
			local, err := filestore.NewLocalStore(filepath.Join(cfg.DownloadDir, "files"))
			if err != nil {
				log.Fatalf("FileStore local: %+v", err)
			}
			di.fileStore = local
			di.Logger().Info("initialized local file store", slog.String("base_dir", cfg.DownloadDir))
		}
	}

	return di.fileStore
}

func (di *dependencyInjector) JetStream(ctx context.Context) nats.JetStreamContext {
	if di.js == nil {
		cfg := di.Config()
		nc, js, err := natsq.Connect(natsq.Config{
			URL:           cfg.NATS.URL,
			Name:          cfg.NATS.QueueName,
			MaxReconnects: cfg.NATS.MaxReconnects,
			Stream:        downloadStream,
			Subject:       cfg.NATS.Subject,
			MaxAge:        2 * cfg.Retention,
		})
		if err != nil {
			log.Fatalf("NATS connect: %+v", err)
		}

		di.natsConn = nc
		di.js = js
	}
	return di.js
}

func (di *dependencyInjector) JobQueue(ctx context.Context) jobs.Queue {
	if di.jobQueue == nil {
		cfg := di.Config()
		switch cfg.Queue {
		case "nats":
			q, err := queue.NewNATSQueue(
				di.JetStream(ctx),
				downloadStream,
				cfg.NATS.Subject,
				"videovault-download-consumer",
				cfg.PoolSize*2,
				cfg.ExtractionTimeout+time.Minute,
			)
			if err != nil {
				log.Fatalf("NATS queue: %+v", err)
			}
			di.closers = append(di.closers, q)
			di.jobQueue = q
		default:
			di.jobQueue = queue.NewChannelQueue(cfg.QueueCapacity)
		}
	}
	return di.jobQueue
}

func (di *dependencyInjector) Invoker() jobs.Invoker {
	if di.invoker == nil {
		di.invoker = extractor.New()
	}
	return di.invoker
}

func (di *dependencyInjector) Manager(ctx context.Context) *jobs.Manager {
	if di.manager == nil {
		cfg := di.Config()
		di.manager = jobs.NewManager(
			jobs.Config{
				Retention:         cfg.Retention,
				ExtractionTimeout: cfg.ExtractionTimeout,
				MaxFileSize:       cfg.MaxFileSizeBytes(),
				ScratchDir:        filepath.Join(cfg.DownloadDir, "scratch"),
			},
			di.JobStore(ctx),
			di.FileStore(ctx),
			di.JobQueue(ctx),
			di.Invoker(),
			di.Metrics(),
		)
	}
	return di.manager
}

func (di *dependencyInjector) Dispatcher(ctx context.Context) *jobs.Dispatcher {
	if di.dispatcher == nil {
		di.dispatcher = jobs.NewDispatcher(di.Manager(ctx), di.JobQueue(ctx), di.Config().PoolSize)
	}
	return di.dispatcher
}

func (di *dependencyInjector) Janitor(ctx context.Context) *jobs.Janitor {
	if di.janitor == nil {
		cfg := di.Config()
		di.janitor = jobs.NewJanitor(cfg.SweepInterval, cfg.Retention, di.JobStore(ctx), di.FileStore(ctx))
	}
	return di.janitor
}

func (di *dependencyInjector) Handler(ctx context.Context) transport.Handler {
	if di.handler == nil {
		cfg := di.Config()
		di.handler = transport.NewHandler(di.Manager(ctx), transport.ServiceInfo{
			JobStore:  cfg.JobStore,
			FileStore: cfg.FileStore,
		})
	}

	return di.handler
}

func (di *dependencyInjector) Router(ctx context.Context) Router {
	if di.router == nil {
		di.router = transport.NewRouter(di.Handler(ctx), di.Metrics().Handler())
	}

	return di.router
}

func (di *dependencyInjector) Close() {
	for _, c := range di.closers {
		if err := c.Close(); err != nil {
			slog.Warn("close dependency", slog.String("error", err.Error()))
		}
	}
	if di.natsConn != nil {
		di.natsConn.Close()
	}
	if di.redis != nil {
		if err := di.redis.Close(); err != nil {
			slog.Warn("close redis", slog.String("error", err.Error()))
		}
	}
}

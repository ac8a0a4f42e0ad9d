package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	DownloadDir string `yaml:"download_dir"`

	Retention         time.Duration `yaml:"retention"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	ExtractionTimeout time.Duration `yaml:"extraction_timeout"`
	MaxFileSizeMb     int64         `yaml:"max_file_size_mb"`

	PoolSize      int `yaml:"pool_size"`
	QueueCapacity int `yaml:"queue_capacity"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	LogLevel string `yaml:"log_level"`

	JobStore  string `yaml:"job_store"`  // memory | redis | sqlite
	FileStore string `yaml:"file_store"` // local | minio
	Queue     string `yaml:"queue"`      // channel | nats

	Redis  Redis  `yaml:"redis"`
	SQLite SQLite `yaml:"sqlite"`
	MinIO  MinIO  `yaml:"minio"`
	NATS   NATS   `yaml:"nats"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Bucket          string `yaml:"bucket"`
}

type NATS struct {
	URL           string `yaml:"url"`
	QueueName     string `yaml:"queue_name"`
	MaxReconnects int    `yaml:"max_reconnects"`
	Subject       string `yaml:"subject"`
}

func MustLoad(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("config: cannot read file %q: %v", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("config: cannot unmarshal yaml: %v", err)
	}

	if addr := os.Getenv("VIDEOVAULT_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	if cfg.Addr == "" {
		log.Fatalf("config: addr is empty")
	}
	if cfg.DownloadDir == "" {
		log.Fatalf("config: download_dir is empty")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = 30 * time.Minute
	}
	if cfg.MaxFileSizeMb <= 0 {
		cfg.MaxFileSizeMb = 500
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 3
	}
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = 64
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	switch cfg.JobStore {
	case "":
		cfg.JobStore = "memory"
	case "memory", "sqlite":
	case "redis":
		if cfg.Redis.Addr == "" {
			log.Fatalf("config: job_store is redis but redis.addr is empty")
		}
	default:
		log.Fatalf("config: unknown job_store %q", cfg.JobStore)
	}

	if cfg.JobStore == "sqlite" && cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "videovault.db"
	}

	switch cfg.FileStore {
	case "":
		cfg.FileStore = "local"
	case "local":
	case "minio":
		if cfg.MinIO.Endpoint == "" {
			log.Fatalf("config: file_store is minio but minio.endpoint is empty")
		}
	default:
		log.Fatalf("config: unknown file_store %q", cfg.FileStore)
	}

	switch cfg.Queue {
	case "":
		cfg.Queue = "channel"
	case "channel":
	case "nats":
		if cfg.NATS.Subject == "" {
			log.Fatalf("config: queue is nats but nats.subject is empty")
		}
	default:
		log.Fatalf("config: unknown queue %q", cfg.Queue)
	}

	return &cfg
}

// MaxFileSizeBytes converts the configured megabyte limit.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMb << 20
}

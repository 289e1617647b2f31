package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Режимы работы репозитория хабов
const (
	HubBackendPostgres = "postgres"
	HubBackendRemote   = "remote"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Log       LogConfig
	Worker    WorkerConfig
	HubAPI    HubAPIConfig
	Workspace WorkspaceConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	Env           string
	EditToken     string
	BodyLimit     int
	RunMigrations bool
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled bool
	HubsTTL time.Duration
}

type LogConfig struct {
	Level string
}

type WorkerConfig struct {
	Enabled           bool
	ConsumerGroup     string
	ConsumerName      string
	StreamReadTimeout time.Duration
	BatchSize         int
	MaxRetries        int
}

// HubAPIConfig - удалённый сервис хабов (HUB_BACKEND=remote)
type HubAPIConfig struct {
	Backend        string
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
}

type WorkspaceConfig struct {
	DefaultActivePhase string
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:          viper.GetString("API_HOST"),
			Port:          viper.GetInt("API_PORT"),
			Env:           viper.GetString("API_ENV"),
			EditToken:     viper.GetString("EDIT_API_TOKEN"),
			BodyLimit:     viper.GetInt("API_BODY_LIMIT_MB") * 1024 * 1024,
			RunMigrations: viper.GetBool("DB_RUN_MIGRATIONS"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			DBName:          viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSLMODE"),
			MaxConns:        viper.GetInt("DB_MAX_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(viper.GetInt("DB_CONN_MAX_LIFETIME")) * time.Second,
			ConnMaxIdleTime: time.Duration(viper.GetInt("DB_CONN_MAX_IDLE_TIME")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Cache: CacheConfig{
			Enabled: viper.GetBool("HUBS_CACHE_ENABLED"),
			HubsTTL: time.Duration(viper.GetInt("HUBS_CACHE_TTL")) * time.Second,
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Worker: WorkerConfig{
			Enabled:           viper.GetBool("WORKER_ENABLED"),
			ConsumerGroup:     viper.GetString("WORKER_CONSUMER_GROUP"),
			ConsumerName:      viper.GetString("WORKER_CONSUMER_NAME"),
			StreamReadTimeout: time.Duration(viper.GetInt("WORKER_STREAM_READ_TIMEOUT")) * time.Millisecond,
			BatchSize:         viper.GetInt("WORKER_BATCH_SIZE"),
			MaxRetries:        viper.GetInt("WORKER_MAX_RETRIES"),
		},
		HubAPI: HubAPIConfig{
			Backend:        strings.ToLower(strings.TrimSpace(viper.GetString("HUB_BACKEND"))),
			BaseURL:        strings.TrimRight(viper.GetString("HUB_API_BASE_URL"), "/"),
			Token:          viper.GetString("HUB_API_TOKEN"),
			RequestTimeout: time.Duration(viper.GetInt("HUB_API_TIMEOUT")) * time.Second,
		},
		Workspace: WorkspaceConfig{
			DefaultActivePhase: viper.GetString("WORKSPACE_ACTIVE_PHASE"),
		},
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.BodyLimit == 0 {
		c.Server.BodyLimit = 16 * 1024 * 1024
	}
	if c.Cache.HubsTTL == 0 {
		c.Cache.HubsTTL = 10 * time.Minute
	}
	if c.Worker.ConsumerGroup == "" {
		c.Worker.ConsumerGroup = "hub-invalidation-workers"
	}
	if c.Worker.ConsumerName == "" {
		c.Worker.ConsumerName = "hub-invalidation-worker-1"
	}
	if c.Worker.StreamReadTimeout == 0 {
		c.Worker.StreamReadTimeout = 500 * time.Millisecond
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 50
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 3
	}
	if c.HubAPI.Backend == "" {
		c.HubAPI.Backend = HubBackendPostgres
	}
	if c.HubAPI.RequestTimeout == 0 {
		c.HubAPI.RequestTimeout = 30 * time.Second
	}
	if c.Workspace.DefaultActivePhase == "" {
		c.Workspace.DefaultActivePhase = "concept"
	}
}

// Validate проверяет согласованность режима репозитория
func (c *Config) Validate() error {
	switch c.HubAPI.Backend {
	case HubBackendPostgres:
	case HubBackendRemote:
		if c.HubAPI.BaseURL == "" {
			return fmt.Errorf("HUB_API_BASE_URL is required when HUB_BACKEND=%s", HubBackendRemote)
		}
	default:
		return fmt.Errorf("unknown HUB_BACKEND %q", c.HubAPI.Backend)
	}
	return nil
}

// IsRemote - хабы читаются и пишутся через удалённый API
func (c *Config) IsRemote() bool {
	return c.HubAPI.Backend == HubBackendRemote
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

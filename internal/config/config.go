package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Path of an optional JSON or YAML config file
	fileVariable = "TIMETABLER_CONFIG"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Log     LogConfig
	Engine  EngineConfig
	Store   StoreConfig
	Cache   CacheConfig
	Metrics MetricsConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig holds the defaults of every generation run; inputs may still override the grid options
type EngineConfig struct {
	Strategy            string
	SlotsPerDay         int
	DefaultDivisionSize int
	MaxDailyLessons     int
	StepBudget          uint64
	TimeBudget          time.Duration
	RequestTimeout      time.Duration
}

// StoreConfig selects the run-history database. Driver is "sqlite" or "postgres"
type StoreConfig struct {
	Enabled      bool
	Driver       string
	DSN          string
	MaxOpenConns int
}

type CacheConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads .env, the environment (TIMETABLER_ prefixed) and the file named by TIMETABLER_CONFIG
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv(fileVariable))
}

// LoadFile is Load with an explicit config file; an empty path reads the environment only
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TIMETABLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("env")
	cfg.Port = v.GetInt("port")
	cfg.APIPrefix = v.GetString("api_prefix")

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	cfg.Engine = EngineConfig{
		Strategy:            v.GetString("engine.strategy"),
		SlotsPerDay:         v.GetInt("engine.slots_per_day"),
		DefaultDivisionSize: v.GetInt("engine.default_division_size"),
		MaxDailyLessons:     v.GetInt("engine.max_daily_lessons"),
		StepBudget:          v.GetUint64("engine.step_budget"),
		TimeBudget:          parseDuration(v.GetString("engine.time_budget"), 0),
		RequestTimeout:      parseDuration(v.GetString("engine.request_timeout"), time.Minute),
	}

	cfg.Store = StoreConfig{
		Enabled:      v.GetBool("store.enabled"),
		Driver:       v.GetString("store.driver"),
		DSN:          v.GetString("store.dsn"),
		MaxOpenConns: v.GetInt("store.max_open_conns"),
	}

	cfg.Cache = CacheConfig{
		Enabled:  v.GetBool("cache.enabled"),
		Host:     v.GetString("cache.host"),
		Port:     v.GetInt("cache.port"),
		Password: v.GetString("cache.password"),
		DB:       v.GetInt("cache.db"),
		TTL:      parseDuration(v.GetString("cache.ttl"), time.Hour),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("metrics.enabled"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("port", 8080)
	v.SetDefault("api_prefix", "/api/v1")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("engine.strategy", "embedded")
	v.SetDefault("engine.slots_per_day", 6)
	v.SetDefault("engine.default_division_size", 30)
	v.SetDefault("engine.max_daily_lessons", 0)
	v.SetDefault("engine.step_budget", 2_000_000)
	v.SetDefault("engine.time_budget", "")
	v.SetDefault("engine.request_timeout", "1m")

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "timetabler.db")
	v.SetDefault("store.max_open_conns", 10)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.host", "localhost")
	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("metrics.enabled", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

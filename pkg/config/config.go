package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port    int           `mapstructure:"port"`
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	Timezone        string        `mapstructure:"timezone"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig holds the constants of the streak and analytics engine.
type EngineConfig struct {
	Timezone                string        `mapstructure:"timezone"`
	DayStartHour            int           `mapstructure:"day_start_hour"`
	MilestoneThresholds     []int         `mapstructure:"milestone_thresholds"`
	HeatmapLevels           []int         `mapstructure:"heatmap_levels"`
	TrendThreshold          float64       `mapstructure:"trend_threshold"`
	CorrelationLookbackDays int           `mapstructure:"correlation_lookback_days"`
	CorrelationMinSamples   int           `mapstructure:"correlation_min_samples"`
	AnalyticsCacheTTL       time.Duration `mapstructure:"analytics_cache_ttl"`
}

type SchedulerConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	RefreshBatchSize int  `mapstructure:"refresh_batch_size"`
}

// Location resolves the configured engine timezone, defaulting to UTC.
func (e EngineConfig) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(e.Timezone)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.timeout", 5*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "habits")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.path", "habits.db")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_issuer", "habits")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.timezone", "UTC")
	v.SetDefault("engine.day_start_hour", 0)
	v.SetDefault("engine.milestone_thresholds", []int{7, 14, 30, 60, 90, 100, 180, 365})
	v.SetDefault("engine.heatmap_levels", []int{1, 2, 4, 6})
	v.SetDefault("engine.trend_threshold", 5.0)
	v.SetDefault("engine.correlation_lookback_days", 60)
	v.SetDefault("engine.correlation_min_samples", 14)
	v.SetDefault("engine.analytics_cache_ttl", 10*time.Minute)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.refresh_batch_size", 200)
}

func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// If CONFIG_FILE environment variable is set, use it
	if envConfigFile := os.Getenv("CONFIG_FILE"); envConfigFile != "" {
		configPath = envConfigFile
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		dir := filepath.Dir(configPath)
		file := filepath.Base(configPath)
		ext := filepath.Ext(file)
		name := strings.TrimSuffix(file, ext)

		v.AddConfigPath(dir)
		v.SetConfigName(name)
	} else {
		// Fallback to default locations
		_, filename, _, _ := runtime.Caller(0)
		pkgConfigDir := filepath.Dir(filename)
		projectRoot := filepath.Join(pkgConfigDir, "..", "..")

		v.AddConfigPath(".")
		v.AddConfigPath(pkgConfigDir)
		v.AddConfigPath(projectRoot)
		v.SetConfigName("config")
	}

	// A missing file is fine, defaults and the environment still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envVars := map[string]string{
		"database.driver":         "DB_DRIVER",
		"database.host":           "DB_HOST",
		"database.port":           "DB_PORT",
		"database.user":           "DB_USER",
		"database.password":       "DB_PASSWORD",
		"database.name":           "DB_NAME",
		"database.sslmode":        "DB_SSLMODE",
		"database.path":           "DB_PATH",
		"server.port":             "SERVER_PORT",
		"server.mode":             "SERVER_MODE",
		"server.timeout":          "SERVER_TIMEOUT",
		"redis.enabled":           "REDIS_ENABLED",
		"redis.host":              "REDIS_HOST",
		"redis.port":              "REDIS_PORT",
		"redis.password":          "REDIS_PASSWORD",
		"redis.db":                "REDIS_DB",
		"auth.jwt_secret":         "JWT_SECRET",
		"auth.jwt_issuer":         "JWT_ISSUER",
		"logging.level":           "LOG_LEVEL",
		"logging.format":          "LOG_FORMAT",
		"engine.timezone":         "ENGINE_TIMEZONE",
		"engine.day_start_hour":   "ENGINE_DAY_START_HOUR",
		"scheduler.enabled":       "SCHEDULER_ENABLED",
	}

	for configKey, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			switch envVar {
			case "DB_PORT", "REDIS_PORT", "REDIS_DB", "SERVER_PORT", "ENGINE_DAY_START_HOUR":
				if intVal, err := strconv.Atoi(value); err == nil {
					v.Set(configKey, intVal)
				}
			case "SERVER_TIMEOUT":
				if d, err := time.ParseDuration(value); err == nil {
					v.Set(configKey, d)
				}
			case "REDIS_ENABLED", "SCHEDULER_ENABLED":
				if b, err := strconv.ParseBool(value); err == nil {
					v.Set(configKey, b)
				}
			default:
				v.Set(configKey, value)
			}
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects engine constants the streak and analytics code cannot work with.
func (c *Config) Validate() error {
	e := c.Engine
	if _, err := e.Location(); err != nil {
		return fmt.Errorf("invalid engine.timezone %q: %w", e.Timezone, err)
	}
	if e.DayStartHour < 0 || e.DayStartHour > 23 {
		return fmt.Errorf("engine.day_start_hour must be within 0..23, got %d", e.DayStartHour)
	}
	if len(e.MilestoneThresholds) == 0 {
		return errors.New("engine.milestone_thresholds must not be empty")
	}
	for i, t := range e.MilestoneThresholds {
		if t <= 0 || (i > 0 && t <= e.MilestoneThresholds[i-1]) {
			return errors.New("engine.milestone_thresholds must be positive and strictly ascending")
		}
	}
	if len(e.HeatmapLevels) != 4 {
		return fmt.Errorf("engine.heatmap_levels must hold exactly 4 boundaries, got %d", len(e.HeatmapLevels))
	}
	for i, b := range e.HeatmapLevels {
		if b <= 0 || (i > 0 && b <= e.HeatmapLevels[i-1]) {
			return errors.New("engine.heatmap_levels must be positive and strictly ascending")
		}
	}
	if e.TrendThreshold < 0 {
		return errors.New("engine.trend_threshold must not be negative")
	}
	if e.CorrelationMinSamples < 2 {
		return errors.New("engine.correlation_min_samples must be at least 2")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}

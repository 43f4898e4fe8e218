// Package config loads application configuration from YAML files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sss97133/nuke-sub008/internal/api"
	"github.com/sss97133/nuke-sub008/internal/database"
	"github.com/sss97133/nuke-sub008/internal/events"
	"github.com/sss97133/nuke-sub008/internal/fetch"
	"github.com/sss97133/nuke-sub008/internal/logger"
	"github.com/sss97133/nuke-sub008/internal/reconcile"
	"github.com/sss97133/nuke-sub008/internal/scheduler"
)

// RedisConfig holds the Redis connection settings for event publishing.
// An empty address disables Redis and events fall back to log output.
type RedisConfig struct {
	Address  string `yaml:"address"  mapstructure:"address"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db"       mapstructure:"db"`
}

// Config is the application configuration tree.
type Config struct {
	Logger    logger.Config    `yaml:"logger"    mapstructure:"logger"`
	Server    api.Config       `yaml:"server"    mapstructure:"server"`
	Database  database.Config  `yaml:"database"  mapstructure:"database"`
	Fetch     fetch.Config     `yaml:"fetch"     mapstructure:"fetch"`
	Reconcile reconcile.Config `yaml:"reconcile" mapstructure:"reconcile"`
	Events    events.Config    `yaml:"events"    mapstructure:"events"`
	Scheduler scheduler.Config `yaml:"scheduler" mapstructure:"scheduler"`
	Redis     RedisConfig      `yaml:"redis"     mapstructure:"redis"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Logger.SetDefaults()
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.Fetch.SetDefaults()
	c.Reconcile.SetDefaults()
	c.Events.SetDefaults()
	c.Scheduler.SetDefaults()
}

// Load reads configuration from the optional YAML file at path, .env, and
// the environment. Environment variables override file values, keyed by
// section and field with underscores, e.g. DATABASE_HOST.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		// No config file in the search path is fine; env vars and
		// defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	bindEnvKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// bindEnvKeys binds the environment variable names used in deployment so
// AutomaticEnv resolves them without a config file entry.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"logger.level",
		"server.address",
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"fetch.user_agent",
		"redis.address",
		"redis.password",
		"redis.db",
	} {
		_ = v.BindEnv(key)
	}
}

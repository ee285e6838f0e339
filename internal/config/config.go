package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Feed      ServerConfig   `mapstructure:"feed"`
	Analytics ServerConfig   `mapstructure:"analytics"`
	Redis     RedisConfig    `mapstructure:"redis"`
	MySQL     MySQLConfig    `mapstructure:"mysql"`
	Auction   AuctionConfig  `mapstructure:"auction"`
	Closer    CloserConfig   `mapstructure:"closer"`
	Auth      AuthConfig     `mapstructure:"auth"`
	Log       LogConfig      `mapstructure:"log"`
	Instance  InstanceConfig `mapstructure:"instance"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuctionConfig is read once at startup; the ledger never re-reads it.
type AuctionConfig struct {
	Owner           string        `mapstructure:"owner"`
	MinIncrementPct int64         `mapstructure:"min_increment_pct"`
	FeePct          int64         `mapstructure:"fee_pct"`
	ExtensionWindow time.Duration `mapstructure:"extension_window"`
	InitialDuration time.Duration `mapstructure:"initial_duration"`
}

type CloserConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Schedule   string `mapstructure:"schedule"`
	AutoSettle bool   `mapstructure:"auto_settle"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type InstanceConfig struct {
	ID      string        `mapstructure:"id"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("feed.port", 8081)
	v.SetDefault("feed.host", "0.0.0.0")
	v.SetDefault("analytics.port", 8082)
	v.SetDefault("analytics.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "ledger_events")
	v.SetDefault("mysql.dsn", "ledger_user:ledger_pass@tcp(localhost:3306)/auction_ledger?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("auction.owner", "")
	v.SetDefault("auction.min_increment_pct", 5)
	v.SetDefault("auction.fee_pct", 2)
	v.SetDefault("auction.extension_window", 10*time.Minute)
	v.SetDefault("auction.initial_duration", 10*time.Minute)
	v.SetDefault("closer.enabled", true)
	v.SetDefault("closer.schedule", "@every 5s")
	v.SetDefault("closer.auto_settle", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "auction-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("instance.id", "auction-ledger-1")
	v.SetDefault("instance.lock_ttl", 30*time.Second)
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()

	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("feed.port", "FEED_PORT")
	v.BindEnv("feed.host", "FEED_HOST")
	v.BindEnv("analytics.port", "ANALYTICS_PORT")
	v.BindEnv("analytics.host", "ANALYTICS_HOST")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.channel", "REDIS_CHANNEL")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("auction.owner", "AUCTION_OWNER")
	v.BindEnv("auction.min_increment_pct", "AUCTION_MIN_INCREMENT_PCT")
	v.BindEnv("auction.fee_pct", "AUCTION_FEE_PCT")
	v.BindEnv("auction.extension_window", "AUCTION_EXTENSION_WINDOW")
	v.BindEnv("auction.initial_duration", "AUCTION_INITIAL_DURATION")
	v.BindEnv("closer.enabled", "CLOSER_ENABLED")
	v.BindEnv("closer.schedule", "CLOSER_SCHEDULE")
	v.BindEnv("closer.auto_settle", "CLOSER_AUTO_SETTLE")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("instance.lock_ttl", "INSTANCE_LOCK_TTL")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-ledger/")

	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the settings the ledger cannot start without.
func (c *Config) Validate() error {
	if c.Auction.Owner == "" {
		return errors.New("auction.owner is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Auction.MinIncrementPct < 0 || c.Auction.MinIncrementPct > 100 ||
		c.Auction.FeePct < 0 || c.Auction.FeePct > 100 {
		return fmt.Errorf("invalid auction percentages: increment=%d fee=%d",
			c.Auction.MinIncrementPct, c.Auction.FeePct)
	}
	if c.Auction.ExtensionWindow <= 0 || c.Auction.InitialDuration <= 0 {
		return errors.New("auction durations must be positive")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Feed: %s:%d, Redis: %s, Owner: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Feed.Host,
		c.Feed.Port,
		c.Redis.Address,
		c.Auction.Owner,
		c.Instance.ID,
	)
}

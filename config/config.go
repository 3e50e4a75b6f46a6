// Package config loads the stock board configuration from defaults, an
// optional config file, a .env file and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the stock board.
type Config struct {
	Board BoardConfig `mapstructure:"board"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// BoardConfig configures the board itself.
type BoardConfig struct {
	Symbols     []string      `mapstructure:"symbols"`
	Period      time.Duration `mapstructure:"period"`
	NarrowWidth int           `mapstructure:"narrow_width"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig configures the snapshot store. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig configures the tick stream. No Brokers disables it.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

var keys = []string{
	"board.symbols", "board.period", "board.narrow_width",
	"http.addr",
	"redis.addr", "redis.password", "redis.db",
	"kafka.brokers", "kafka.topic",
}

// Load reads the configuration. file is an optional config file in any
// format viper understands; pass "" to skip it. Environment variables are
// the keys upper cased with "." replaced by "_", such as BOARD_PERIOD.
func Load(file string) (*Config, error) {
	v := viper.New()

	// Variables in .env become real environment variables.
	if err := godotenv.Load(); err != nil {
		glog.V(1).Infof("no .env file loaded: %s", err)
	}

	v.SetDefault("board.symbols", []string{"AAPL", "GOOGL", "MSFT", "TSLA"})
	v.SetDefault("board.period", 2*time.Second)
	v.SetDefault("board.narrow_width", 600)
	v.SetDefault("http.addr", ":6024")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "stock_ticks")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", file, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("could not bind env var for key %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Board.Symbols = clean(cfg.Board.Symbols)
	cfg.Kafka.Brokers = clean(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// clean trims entries and drops empty ones, "AAPL, MSFT," becomes [AAPL MSFT].
func clean(l []string) []string {
	out := make([]string, 0, len(l))
	for _, s := range l {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate validates the Config.
func (c *Config) Validate() error {
	if len(c.Board.Symbols) == 0 {
		return fmt.Errorf("board.symbols must have at least one stock")
	}
	if c.Board.Period <= 0 {
		return fmt.Errorf("board.period must be positive, was %v", c.Board.Period)
	}
	if c.Board.NarrowWidth <= 0 {
		return fmt.Errorf("board.narrow_width must be positive, was %d", c.Board.NarrowWidth)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic cannot be empty when kafka.brokers is set")
	}
	return nil
}

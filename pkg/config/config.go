package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	xutil "OptRoll/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Name        string `yaml:"name" default:"optroll"`
		Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	} `yaml:"app"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`

	Source struct {
		Type    string `yaml:"type" default:"polygon" validate:"oneof=polygon csv"`
		Polygon struct {
			APIKey    string  `yaml:"api_key"`
			RateLimit float64 `yaml:"rate_limit" default:"5" validate:"gte=0"`
			Burst     int     `yaml:"burst" default:"5" validate:"gte=1"`
		} `yaml:"polygon"`
		CSV struct {
			Dir string `yaml:"dir" default:"./data"`
		} `yaml:"csv"`
	} `yaml:"source"`

	ATM struct {
		MinDaysToExpiry      int     `yaml:"min_days_to_expiry" default:"7" validate:"gte=0"`
		MaxDaysToExpiry      int     `yaml:"max_days_to_expiry" default:"60" validate:"gtefield=MinDaysToExpiry"`
		RollDaysBeforeExpiry int     `yaml:"roll_days_before_expiry" default:"5" validate:"gte=0"`
		StrikeRangePct       float64 `yaml:"strike_range_pct" default:"0.10" validate:"gt=0"`
		MonthlyExpiryOnly    bool    `yaml:"monthly_expiry_only" default:"true"`
		BatchSize            int     `yaml:"batch_size" default:"50" validate:"min=1"`
		TickerParseFallback  bool    `yaml:"ticker_parse_fallback"`
	} `yaml:"atm"`

	Cache struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		Backend    string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		TTL        time.Duration `yaml:"ttl" default:"24h"`
		MemorySize int           `yaml:"memory_size" default:"10000" validate:"min=1"`
	} `yaml:"cache"`

	Redis struct {
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PoolSize int           `yaml:"pool_size" default:"10"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
		Prefix   string        `yaml:"prefix" default:"optroll"`
	} `yaml:"redis"`

	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"1" validate:"min=1"`
		RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		KeyPrefix  string        `yaml:"key_prefix" default:"optroll:queue"`
		StatusTTL  time.Duration `yaml:"status_ttl" default:"24h"`
	} `yaml:"queue"`

	Kafka struct {
		Brokers      []string      `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topic        string        `yaml:"topic" default:"optroll.atm_series"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"optroll"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"atm_series"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
	} `yaml:"clickhouse"`

	Sink struct {
		Type string `yaml:"type" default:"none" validate:"oneof=none kafka clickhouse both"`
	} `yaml:"sink"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load applies defaults, then the YAML file at path (optional when empty),
// then .env and process environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			*dst = xutil.ParseIntDefault(v, *dst)
		}
	}

	flt := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			*dst = xutil.ParseFloatDefault(v, *dst)
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = xutil.ParseBoolDefault(v, *dst)
		}
	}

	str("OPTROLL_ENV", &c.App.Environment)
	str("OPTROLL_LOG_LEVEL", &c.Log.Level)
	str("OPTROLL_LOG_FORMAT", &c.Log.Format)
	num("OPTROLL_SERVER_PORT", &c.Server.Port)
	str("OPTROLL_SOURCE", &c.Source.Type)
	str("OPTROLL_CSV_DIR", &c.Source.CSV.Dir)
	str("OPTROLL_SINK", &c.Sink.Type)
	str("POLYGON_API_KEY", &c.Source.Polygon.APIKey)
	flt("POLYGON_RATE_LIMIT", &c.Source.Polygon.RateLimit)
	flt("OPTROLL_STRIKE_RANGE_PCT", &c.ATM.StrikeRangePct)
	flag("OPTROLL_MONTHLY_ONLY", &c.ATM.MonthlyExpiryOnly)
	flag("OPTROLL_CACHE_ENABLED", &c.Cache.Enabled)
	flag("OPTROLL_QUEUE_ENABLED", &c.Queue.Enabled)
	str("REDIS_HOST", &c.Redis.Host)
	num("REDIS_PORT", &c.Redis.Port)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	num("CLICKHOUSE_PORT", &c.ClickHouse.Port)
	str("CLICKHOUSE_DATABASE", &c.ClickHouse.Database)
	str("CLICKHOUSE_USER", &c.ClickHouse.User)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
}

// Validate checks struct tags plus rules spanning sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Source.Type == "polygon" && c.Source.Polygon.APIKey == "" {
		return fmt.Errorf("source.polygon.api_key is required (or set POLYGON_API_KEY)")
	}
	if c.Source.Type == "csv" && c.Source.CSV.Dir == "" {
		return fmt.Errorf("source.csv.dir is required")
	}
	if (c.Sink.Type == "kafka" || c.Sink.Type == "both") && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty for sink %q", c.Sink.Type)
	}
	return nil
}

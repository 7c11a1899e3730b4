package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	configFileEnvName = "GALLERY_CONFIG_FILE"
	envPrefix         = "GALLERY"
)

// Catalog source names accepted in catalog.sources.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
	SourceMock   = "mock"
	SourceCache  = "cache"
	SourceSQL    = "sql"
	SourceKafka  = "kafka"
)

type logConfig struct {
	Level       slog.Level `mapstructure:"level" yaml:"level"`
	Format      string     `mapstructure:"format" yaml:"format"`
	ServiceName string     `mapstructure:"service_name" yaml:"service_name"`
}

type httpConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" yaml:"handler_timeout"`
}

type retryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
}

type mockConfig struct {
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
	FailRate float64       `mapstructure:"fail_rate" yaml:"fail_rate"`
}

type catalogConfig struct {
	Sources       []string      `mapstructure:"sources" yaml:"sources"`
	RemoteURL     string        `mapstructure:"remote_url" yaml:"remote_url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout" yaml:"remote_timeout"`
	LocalPath     string        `mapstructure:"local_path" yaml:"local_path"`
	Watch         bool          `mapstructure:"watch" yaml:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce" yaml:"watch_debounce"`
	Retry         retryConfig   `mapstructure:"retry" yaml:"retry"`
	Mock          mockConfig    `mapstructure:"mock" yaml:"mock"`
}

type renderConfig struct {
	PageTitle      string        `mapstructure:"page_title" yaml:"page_title"`
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	SearchDebounce time.Duration `mapstructure:"search_debounce" yaml:"search_debounce"`
}

type redisConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Key      string        `mapstructure:"key" yaml:"key"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type sqlConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type topics struct {
	Products     string `mapstructure:"products" yaml:"products"`
	Categories   string `mapstructure:"categories" yaml:"categories"`
	FilterEvents string `mapstructure:"filter_events" yaml:"filter_events"`
}

type groups struct {
	ProductsTable   string `mapstructure:"products_table" yaml:"products_table"`
	CategoriesTable string `mapstructure:"categories_table" yaml:"categories_table"`
	CatalogWatcher  string `mapstructure:"catalog_watcher" yaml:"catalog_watcher"`
}

type brokerConfig struct {
	Enabled            bool     `mapstructure:"enabled" yaml:"enabled"`
	SeedBrokers        []string `mapstructure:"seed_brokers" yaml:"seed_brokers"`
	SchemaRegistryURLs []string `mapstructure:"schema_registry_urls" yaml:"schema_registry_urls"`
	TLS                bool     `mapstructure:"tls" yaml:"tls"`
	CACertPath         string   `mapstructure:"ca_cert_path" yaml:"ca_cert_path"`
	CertPath           string   `mapstructure:"cert_path" yaml:"cert_path"`
	KeyPath            string   `mapstructure:"key_path" yaml:"key_path"`
	Topics             topics   `mapstructure:"topics" yaml:"topics"`
	Groups             groups   `mapstructure:"groups" yaml:"groups"`
	PublishEvents      bool     `mapstructure:"publish_events" yaml:"publish_events"`
	WatchCatalog       bool     `mapstructure:"watch_catalog" yaml:"watch_catalog"`
}

type filtersConfig struct {
	Status []domain.FilterOption `mapstructure:"status" yaml:"status"`
	Tags   []domain.FilterOption `mapstructure:"tags" yaml:"tags"`
}

type Config struct {
	Log     logConfig     `mapstructure:"log" yaml:"log"`
	HTTP    httpConfig    `mapstructure:"http" yaml:"http"`
	Catalog catalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Render  renderConfig  `mapstructure:"render" yaml:"render"`
	Redis   redisConfig   `mapstructure:"redis" yaml:"redis"`
	SQL     sqlConfig     `mapstructure:"sql" yaml:"sql"`
	Broker  brokerConfig  `mapstructure:"broker" yaml:"broker"`
	Filters filtersConfig `mapstructure:"filters" yaml:"filters"`
}

// Load reads the config file named by the --config flag or the
// GALLERY_CONFIG_FILE variable. A .env file in the working directory is
// loaded first. Any error terminates the process.
func Load() Config {
	_ = godotenv.Load()

	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

// LoadFile reads path over the defaults. GALLERY_* variables override file
// values, e.g. GALLERY_HTTP_ADDR.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.service_name", "gallery")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.handler_timeout", 30*time.Second)

	v.SetDefault("catalog.sources", []string{SourceLocal})
	v.SetDefault("catalog.remote_url", "")
	v.SetDefault("catalog.remote_timeout", 10*time.Second)
	v.SetDefault("catalog.local_path", "data/products.json")
	v.SetDefault("catalog.watch", false)
	v.SetDefault("catalog.watch_debounce", 500*time.Millisecond)
	v.SetDefault("catalog.retry.max_attempts", 1)
	v.SetDefault("catalog.retry.base_delay", 200*time.Millisecond)
	v.SetDefault("catalog.mock.delay", 300*time.Millisecond)
	v.SetDefault("catalog.mock.fail_rate", 0.1)

	v.SetDefault("render.page_title", "Galería de productos")
	v.SetDefault("render.interval", 16*time.Millisecond)
	v.SetDefault("render.search_debounce", 300*time.Millisecond)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "gallery:catalog")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("sql.dsn", "")

	v.SetDefault("broker.enabled", false)
	v.SetDefault("broker.seed_brokers", []string{"localhost:9092"})
	v.SetDefault("broker.schema_registry_urls", []string{"http://localhost:8081"})
	v.SetDefault("broker.tls", false)
	v.SetDefault("broker.ca_cert_path", "")
	v.SetDefault("broker.cert_path", "")
	v.SetDefault("broker.key_path", "")
	v.SetDefault("broker.topics.products", "catalog-products")
	v.SetDefault("broker.topics.categories", "catalog-categories")
	v.SetDefault("broker.topics.filter_events", "gallery-filter-events")
	v.SetDefault("broker.groups.products_table", "catalog-products-table")
	v.SetDefault("broker.groups.categories_table", "catalog-categories-table")
	v.SetDefault("broker.groups.catalog_watcher", "gallery-catalog-watcher")
	v.SetDefault("broker.publish_events", true)
	v.SetDefault("broker.watch_catalog", true)
}

func (c Config) validate() error {
	if len(c.Catalog.Sources) == 0 {
		return fmt.Errorf("catalog.sources is empty")
	}
	for _, s := range c.Catalog.Sources {
		switch s {
		case SourceRemote:
			if c.Catalog.RemoteURL == "" {
				return fmt.Errorf("catalog.remote_url is required by source %q", s)
			}
		case SourceLocal, SourceMock:
			if c.Catalog.LocalPath == "" {
				return fmt.Errorf("catalog.local_path is required by source %q", s)
			}
		case SourceCache:
			if !c.Redis.Enabled {
				return fmt.Errorf("redis.enabled is required by source %q", s)
			}
		case SourceSQL:
			if c.SQL.DSN == "" {
				return fmt.Errorf("sql.dsn is required by source %q", s)
			}
		case SourceKafka:
			if !c.Broker.Enabled {
				return fmt.Errorf("broker.enabled is required by source %q", s)
			}
		default:
			return fmt.Errorf("unknown catalog source %q", s)
		}
	}
	if c.Catalog.Mock.FailRate < 0 || c.Catalog.Mock.FailRate > 1 {
		return fmt.Errorf("catalog.mock.fail_rate out of range: %v", c.Catalog.Mock.FailRate)
	}
	return nil
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	cmdLine.ParseErrorsWhitelist.UnknownFlags = true
	arg := cmdLine.String("config", "config.yaml", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

// Print writes the loaded config as YAML with secrets masked.
func (c Config) Print() {
	if c.Redis.Password != "" {
		c.Redis.Password = "***"
	}
	if c.SQL.DSN != "" {
		c.SQL.DSN = "***"
	}

	out, err := yaml.Marshal(c)
	if err != nil {
		fmt.Printf("failed to print config: %v\n", err)
		return
	}
	fmt.Println("Loaded config:")
	fmt.Println(string(out))
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/AntonStoeckl/model-history-go/history"
)

// EnvPrefix is the prefix of all environment overrides, e.g. HISTORY_DATABASE_DSN or HISTORY_TRACKING_PREFIX.
const EnvPrefix = "HISTORY"

// Supported database drivers.
const (
	DriverPGX      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLX     = "sqlx"
	DriverSQLite   = "sqlite3"
)

var (
	// ErrLoadingConfigFailed is returned when a config or dotenv file cannot be read or decoded.
	ErrLoadingConfigFailed = errors.New("loading configuration failed")

	// ErrUnsupportedDriver is returned for database drivers other than the supported ones.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrUnknownFacet is returned when the tracking facets name an unknown facet.
	ErrUnknownFacet = errors.New("unknown facet")
)

// Config is the file and environment configuration of a program using model history.
type Config struct {
	Database Database `mapstructure:"database"`
	Tracking Tracking `mapstructure:"tracking"`
}

// Database configures the connection pool.
// DSN wins over the single connection fields when set.
type Database struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// Tracking holds the history options that make sense outside of code.
type Tracking struct {
	Prefix           string   `mapstructure:"prefix"`
	Suffix           string   `mapstructure:"suffix"`
	AttributePrefix  string   `mapstructure:"attribute_prefix"`
	Schema           string   `mapstructure:"schema"`
	Exclude          []string `mapstructure:"exclude"`
	Hooks            []string `mapstructure:"hooks"`
	Facets           []string `mapstructure:"facets"`
	TableUnderscored bool     `mapstructure:"table_underscored"`
	Underscored      bool     `mapstructure:"underscored"`
	UnscopedVersions bool     `mapstructure:"unscoped_versions"`
}

// Default returns the configuration used for every key neither the file nor the environment sets.
func Default() Config {
	return Config{
		Database: Database{
			Driver:          DriverPGX,
			Host:            "localhost",
			Port:            5432,
			User:            "test",
			Password:        "test",
			DBName:          "history",
			SSLMode:         "disable",
			MaxConns:        50,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
		},
		Tracking: Tracking{
			Prefix:           "version",
			TableUnderscored: true,
			Underscored:      true,
		},
	}
}

// LoadOption adjusts where Load reads from.
type LoadOption func(*loader)

type loader struct {
	configFile string
	envFiles   []string
}

// WithConfigFile reads the given YAML (or any viper supported) file. A missing file is an error.
func WithConfigFile(path string) LoadOption {
	return func(l *loader) {
		l.configFile = path
	}
}

// WithEnvFiles loads dotenv files into the process environment before the overrides are read.
// Variables already present in the environment are kept.
func WithEnvFiles(paths ...string) LoadOption {
	return func(l *loader) {
		l.envFiles = append(l.envFiles, paths...)
	}
}

// Load builds the configuration from the defaults, an optional config file and HISTORY_ prefixed
// environment variables, in increasing precedence.
//
// Example usage:
//
//	cfg, err := config.Load(config.WithConfigFile("history.yaml"), config.WithEnvFiles(".env"))
//	options, err := cfg.Tracking.Options()
func Load(options ...LoadOption) (Config, error) {
	l := &loader{}
	for _, option := range options {
		option(l)
	}

	if len(l.envFiles) > 0 {
		if err := godotenv.Load(l.envFiles...); err != nil {
			return Config{}, errors.Join(ErrLoadingConfigFailed, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Join(ErrLoadingConfigFailed, err)
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Join(ErrLoadingConfigFailed, err)
	}

	return cfg, nil
}

// setDefaults registers every key, AutomaticEnv only overrides keys viper knows about.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.dbname", d.Database.DBName)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("database.min_conns", d.Database.MinConns)
	v.SetDefault("database.max_conn_lifetime", d.Database.MaxConnLifetime)
	v.SetDefault("database.max_conn_idle_time", d.Database.MaxConnIdleTime)
	v.SetDefault("database.connect_timeout", d.Database.ConnectTimeout)

	v.SetDefault("tracking.prefix", d.Tracking.Prefix)
	v.SetDefault("tracking.suffix", d.Tracking.Suffix)
	v.SetDefault("tracking.attribute_prefix", d.Tracking.AttributePrefix)
	v.SetDefault("tracking.schema", d.Tracking.Schema)
	v.SetDefault("tracking.exclude", d.Tracking.Exclude)
	v.SetDefault("tracking.hooks", d.Tracking.Hooks)
	v.SetDefault("tracking.facets", d.Tracking.Facets)
	v.SetDefault("tracking.table_underscored", d.Tracking.TableUnderscored)
	v.SetDefault("tracking.underscored", d.Tracking.Underscored)
	v.SetDefault("tracking.unscoped_versions", d.Tracking.UnscopedVersions)
}

// ConnectionDSN returns DSN if set, otherwise a postgres URL built from the single fields.
// For sqlite the DBName is the database file.
func (d Database) ConnectionDSN() string {
	if d.DSN != "" {
		return d.DSN
	}

	if d.Driver == DriverSQLite {
		return d.DBName
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.DBName,
	}

	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
	}

	return u.String()
}

// Options converts the tracking configuration into history options.
// Options that need code (user model, user func, loggers) are appended by the caller.
func (t Tracking) Options() ([]history.Option, error) {
	options := []history.Option{
		history.WithPrefix(t.Prefix),
		history.WithSuffix(t.Suffix),
		history.WithAttributePrefix(t.AttributePrefix),
		history.WithTableUnderscored(t.TableUnderscored),
		history.WithUnderscored(t.Underscored),
	}

	if t.Schema != "" {
		options = append(options, history.WithSchema(t.Schema))
	}

	if len(t.Exclude) > 0 {
		options = append(options, history.WithExclude(t.Exclude...))
	}

	if len(t.Hooks) > 0 {
		hooks := make([]history.Hook, 0, len(t.Hooks))
		for _, name := range t.Hooks {
			hook := history.Hook(name)
			if _, err := history.EventKindForHook(hook); err != nil {
				return nil, err
			}
			hooks = append(hooks, hook)
		}
		options = append(options, history.WithHooks(hooks...))
	}

	if len(t.Facets) > 0 {
		facets := make([]history.Facet, 0, len(t.Facets))
		for _, name := range t.Facets {
			facet := history.Facet(name)
			switch facet {
			case history.FacetType, history.FacetColumn, history.FacetGet, history.FacetSet:
				facets = append(facets, facet)
			default:
				return nil, fmt.Errorf("%w: %s", ErrUnknownFacet, name)
			}
		}
		options = append(options, history.WithFacets(facets...))
	}

	if t.UnscopedVersions {
		options = append(options, history.WithUnscopedVersions())
	}

	return options, nil
}

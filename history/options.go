package history

import (
	"context"
	"slices"
)

// UserFunc resolves the acting user of the current operation, typically from request context.
// A nil record means there is no acting user.
type UserFunc func(ctx context.Context) (Record, error)

// AuditConditionFunc decides whether an event gets recorded at all.
// It receives copies of the instances and the acting user.
type AuditConditionFunc func(model Model, instances []Record, kind EventKind, user Record) bool

// Config is the registration configuration of one tracked model. It is immutable once Track returns.
type Config struct {
	prefix           string
	suffix           string
	attributePrefix  string
	schema           string
	namespace        Namespace
	session          Session
	exclude          []string
	tableUnderscored bool
	underscored      bool
	hooks            []Hook
	facets           []Facet
	userModel        Model
	userFunc         UserFunc
	auditCondition   AuditConditionFunc
	unscopedVersions bool
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// Option defines a functional option for configuring a tracked model.
type Option func(*Config) error

// DefaultConfig returns the configuration Track starts from before applying options.
func DefaultConfig() Config {
	return Config{
		prefix:           "version",
		tableUnderscored: true,
		underscored:      true,
		hooks:            DefaultHooks(),
		facets:           DefaultFacets(),
	}
}

// WithPrefix sets the prefix of the history table and model names. An empty prefix requires a suffix.
func WithPrefix(prefix string) Option {
	return func(c *Config) error {
		c.prefix = prefix
		return nil
	}
}

// WithSuffix sets the suffix of the history table name.
func WithSuffix(suffix string) Option {
	return func(c *Config) error {
		c.suffix = suffix
		return nil
	}
}

// WithAttributePrefix sets the prefix of the provenance field names, it defaults to the prefix.
func WithAttributePrefix(attributePrefix string) Option {
	return func(c *Config) error {
		c.attributePrefix = attributePrefix
		return nil
	}
}

// WithSchema places the history table in the given schema instead of the tracked model's one.
func WithSchema(schema string) Option {
	return func(c *Config) error {
		c.schema = schema
		return nil
	}
}

// WithNamespace sets where ambient transactions are looked up.
func WithNamespace(namespace Namespace) Option {
	return func(c *Config) error {
		c.namespace = namespace
		return nil
	}
}

// WithSession stores the history model in another session than the tracked model's.
func WithSession(session Session) Option {
	return func(c *Config) error {
		if session == nil {
			return configurationError(ErrNilSession)
		}

		c.session = session

		return nil
	}
}

// WithExclude keeps the given fields out of the history model.
func WithExclude(fields ...string) Option {
	return func(c *Config) error {
		c.exclude = append(c.exclude, fields...)
		return nil
	}
}

// WithTableUnderscored switches between "version_users" and "versionusers" table names.
func WithTableUnderscored(underscored bool) Option {
	return func(c *Config) error {
		c.tableUnderscored = underscored
		return nil
	}
}

// WithUnderscored switches between "version_type" and "versionType" field names.
func WithUnderscored(underscored bool) Option {
	return func(c *Config) error {
		c.underscored = underscored
		return nil
	}
}

// WithHooks replaces the observed lifecycle hooks. Repeated hooks are observed once.
// Every hook must map to an event kind, Track fails with ErrUnknownHook otherwise.
func WithHooks(hooks ...Hook) Option {
	return func(c *Config) error {
		c.hooks = make([]Hook, 0, len(hooks))
		for _, hook := range hooks {
			if !slices.Contains(c.hooks, hook) {
				c.hooks = append(c.hooks, hook)
			}
		}

		return nil
	}
}

// WithFacets replaces the facets history fields inherit from tracked fields.
func WithFacets(facets ...Facet) Option {
	return func(c *Config) error {
		c.facets = slices.Clone(facets)
		return nil
	}
}

// WithUserModel sets the model acting users are stored in. Required.
func WithUserModel(userModel Model) Option {
	return func(c *Config) error {
		if userModel == nil {
			return configurationError(ErrMissingUserModel)
		}

		c.userModel = userModel

		return nil
	}
}

// WithUserFunc sets the resolver of the acting user. Required.
// Errors it returns abort the triggering write unchanged.
func WithUserFunc(fn UserFunc) Option {
	return func(c *Config) error {
		if fn == nil {
			return configurationError(ErrMissingUserFunc)
		}

		c.userFunc = fn

		return nil
	}
}

// WithAuditCondition sets a predicate that suppresses whole events when it returns false.
func WithAuditCondition(fn AuditConditionFunc) Option {
	return func(c *Config) error {
		c.auditCondition = fn
		return nil
	}
}

// WithUnscopedVersions allows tracking models without a primary key.
// Instance version queries of such models are not restricted to the instance.
func WithUnscopedVersions() Option {
	return func(c *Config) error {
		c.unscopedVersions = true
		return nil
	}
}

// WithLogger sets the logger for the tracker.
//
// Debug level: installed hooks, suppressed events
// Info level: written history rows with counts and durations
// Warn level: risky configurations
// Error level: failed history writes.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it takes precedence over WithLogger.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(c *Config) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the tracker.
func WithMetrics(collector MetricsCollector) Option {
	return func(c *Config) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the tracker.
func WithTracing(collector TracingCollector) Option {
	return func(c *Config) error {
		c.tracingCollector = collector
		return nil
	}
}

func (c Config) validate() error {
	if c.prefix == "" && c.suffix == "" {
		return configurationError(ErrPrefixOrSuffixRequired)
	}

	if c.userModel == nil {
		return configurationError(ErrMissingUserModel)
	}

	if c.userFunc == nil {
		return configurationError(ErrMissingUserFunc)
	}

	for _, hook := range c.hooks {
		if _, err := EventKindForHook(hook); err != nil {
			return configurationError(err)
		}
	}

	return nil
}

// Prefix returns the configured prefix.
func (c Config) Prefix() string { return c.prefix }

// Suffix returns the configured suffix.
func (c Config) Suffix() string { return c.suffix }

// Hooks returns a copy of the observed hooks.
func (c Config) Hooks() []Hook { return slices.Clone(c.hooks) }

// Exclude returns a copy of the excluded field names.
func (c Config) Exclude() []string { return slices.Clone(c.exclude) }

// Package config loads gqlguard settings from files, the environment and
// command-line flags.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	aliaslimit "github.com/hanpama/gqlguard/internal/aliaslimit"
	depthlimit "github.com/hanpama/gqlguard/internal/depthlimit"
	extension "github.com/hanpama/gqlguard/internal/extension"
)

// EnvPrefix prefixes every environment override, e.g. GQLGUARD_LIMITS_DEPTH.
const EnvPrefix = "GQLGUARD"

type Config struct {
	Schema   string         `mapstructure:"schema"`
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Errors   ErrorsConfig   `mapstructure:"errors"`
	Otel     OtelConfig     `mapstructure:"otel"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	Path           string        `mapstructure:"path"`
	Pretty         bool          `mapstructure:"pretty"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxBodyBytes   int64         `mapstructure:"max-body-bytes"`
	ForwardHeaders []string      `mapstructure:"forward-headers"`
	CORSOrigins    []string      `mapstructure:"cors-origins"`
	GraphiQL       bool          `mapstructure:"graphiql"`
}

type UpstreamConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LimitsConfig holds the request limits. A zero value disables a limit.
type LimitsConfig struct {
	Depth         int      `mapstructure:"depth"`
	DepthIgnore   []string `mapstructure:"depth-ignore"`
	Aliases       int      `mapstructure:"aliases"`
	Tokens        int      `mapstructure:"tokens"`
	Introspection bool     `mapstructure:"introspection"`
}

type CacheConfig struct {
	ParserSize     int `mapstructure:"parser-size"`
	ValidationSize int `mapstructure:"validation-size"`
}

type ErrorsConfig struct {
	Mask    bool   `mapstructure:"mask"`
	Message string `mapstructure:"message"`
}

type OtelConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Service  string `mapstructure:"service"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// New returns a viper instance with defaults and environment overrides
// configured.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("schema", "./schema.graphql")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.path", "/graphql")
	v.SetDefault("server.pretty", false)
	v.SetDefault("server.timeout", 10*time.Second)
	v.SetDefault("server.max-body-bytes", int64(1<<20))
	v.SetDefault("server.forward-headers", []string{"Authorization"})
	v.SetDefault("server.cors-origins", []string{})
	v.SetDefault("server.graphiql", true)
	v.SetDefault("upstream.url", "")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("limits.depth", 10)
	v.SetDefault("limits.depth-ignore", []string{})
	v.SetDefault("limits.aliases", 15)
	v.SetDefault("limits.tokens", 1000)
	v.SetDefault("limits.introspection", true)
	v.SetDefault("cache.parser-size", 1000)
	v.SetDefault("cache.validation-size", 1000)
	v.SetDefault("errors.mask", false)
	v.SetDefault("errors.message", "")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service", "gqlguard")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag in fs to the key of the same name.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = v.BindPFlag(f.Name, f)
		}
	})
	return err
}

// Load reads file, if given, and decodes the merged settings.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

// UpstreamURL parses and checks the upstream URL.
func (c *Config) UpstreamURL() (*url.URL, error) {
	if c.Upstream.URL == "" {
		return nil, fmt.Errorf("upstream.url is required")
	}
	u, err := url.Parse(c.Upstream.URL)
	if err != nil {
		return nil, fmt.Errorf("upstream.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream.url: unsupported scheme %q", u.Scheme)
	}
	return u, nil
}

// Extensions builds the extensions described by c in the order they wrap a
// request: token limit and caches first, then validation rules, then
// response masking. Operation depths are logged at debug level.
func (c *Config) Extensions(logger abstractlogger.Logger) ([]extension.Extension, error) {
	var exts []extension.Extension
	if c.Limits.Tokens > 0 {
		l, err := extension.NewMaxTokensLimiter(c.Limits.Tokens)
		if err != nil {
			return nil, err
		}
		exts = append(exts, l)
	}
	if c.Cache.ParserSize > 0 {
		pc, err := extension.NewParserCache(c.Cache.ParserSize)
		if err != nil {
			return nil, err
		}
		exts = append(exts, pc)
	}
	if c.Cache.ValidationSize > 0 {
		vc, err := extension.NewValidationCache(c.Cache.ValidationSize)
		if err != nil {
			return nil, err
		}
		exts = append(exts, vc)
	}
	if !c.Limits.Introspection {
		exts = append(exts, extension.DisableIntrospection{})
	}
	if c.Limits.Depth > 0 {
		ignore, err := c.Limits.ShouldIgnore()
		if err != nil {
			return nil, err
		}
		opts := []depthlimit.Option{depthlimit.WithCallback(func(depths map[string]int) {
			for name, d := range depths {
				logger.Debug("operation depth",
					abstractlogger.String("operation", name),
					abstractlogger.Int("depth", d),
				)
			}
		})}
		if ignore != nil {
			opts = append(opts, depthlimit.WithShouldIgnore(ignore))
		}
		l, err := depthlimit.New(c.Limits.Depth, opts...)
		if err != nil {
			return nil, fmt.Errorf("limits.depth: %w", err)
		}
		exts = append(exts, l)
	}
	if c.Limits.Aliases > 0 {
		l, err := aliaslimit.New(c.Limits.Aliases)
		if err != nil {
			return nil, fmt.Errorf("limits.aliases: %w", err)
		}
		exts = append(exts, l)
	}
	if c.Errors.Mask {
		exts = append(exts, &extension.MaskErrors{Message: c.Errors.Message})
	}
	return exts, nil
}

// ShouldIgnore builds the depth limiter's ignore predicate from DepthIgnore.
// It returns nil when no pattern is configured.
func (l LimitsConfig) ShouldIgnore() (depthlimit.ShouldIgnore, error) {
	patterns, err := ignorePatterns(l.DepthIgnore)
	if err != nil {
		return nil, fmt.Errorf("limits.depth-ignore: %w", err)
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	fn, err := depthlimit.IgnoreFields(patterns...)
	if err != nil {
		return nil, fmt.Errorf("limits.depth-ignore: %w", err)
	}
	return fn, nil
}

// ignorePatterns turns "/expr/" entries into regular expressions and keeps
// every other entry as an exact field name.
func ignorePatterns(patterns []string) ([]any, error) {
	out := make([]any, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) > 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
			re, err := regexp.Compile(p[1 : len(p)-1])
			if err != nil {
				return nil, err
			}
			out = append(out, re)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

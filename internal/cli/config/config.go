// Package config loads CLI settings from formschema.yaml, FORMSCHEMA_*
// environment variables and command flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-formschema/pkg/engine"
	"github.com/goliatone/go-formschema/pkg/resolver"
	"github.com/goliatone/go-formschema/pkg/validation"
	"github.com/goliatone/go-formschema/pkg/visibility"
	"github.com/goliatone/go-formschema/pkg/visibility/cel"
	"github.com/goliatone/go-formschema/pkg/visibility/expr"
)

// Evaluator names accepted by the visibility key.
const (
	EvaluatorExpr = "expr"
	EvaluatorCEL  = "cel"
)

// Config holds the CLI settings.
type Config struct {
	Locale     string `mapstructure:"locale"`
	Debug      bool   `mapstructure:"debug"`
	Strict     bool   `mapstructure:"strict"`
	Missing    string `mapstructure:"missing"`
	Messages   string `mapstructure:"messages"`
	Visibility string `mapstructure:"visibility"`
	Verbose    bool   `mapstructure:"verbose"`
	NoColor    bool   `mapstructure:"no_color"`
}

// Load reads the configuration. path overrides the default lookup of
// formschema.yaml in the working directory; cmd, when non-nil, contributes
// its flags.
func Load(path string, cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	v.SetDefault("locale", validation.DefaultLocale)
	v.SetDefault("missing", resolver.MissingDrop.String())
	v.SetDefault("visibility", EvaluatorExpr)
	v.SetDefault("debug", false)
	v.SetDefault("strict", false)
	v.SetDefault("messages", "")
	v.SetDefault("verbose", false)
	v.SetDefault("no_color", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("formschema")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FORMSCHEMA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", describe(path), err)
		}
	}

	if cmd != nil {
		for _, key := range []string{"locale", "debug", "strict", "missing", "messages", "visibility", "verbose"} {
			if flag := cmd.Flags().Lookup(key); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("config: bind --%s: %w", key, err)
				}
			}
		}
		if flag := cmd.Flags().Lookup("no-color"); flag != nil {
			if err := v.BindPFlag("no_color", flag); err != nil {
				return nil, fmt.Errorf("config: bind --no-color: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func describe(path string) string {
	if path == "" {
		return "formschema.yaml"
	}
	return path
}

func (c *Config) validate() error {
	if _, err := resolver.ParseMissingPolicy(c.Missing); err != nil {
		return fmt.Errorf("config: missing: %w", err)
	}
	switch c.Visibility {
	case EvaluatorExpr, EvaluatorCEL:
	default:
		return fmt.Errorf("config: visibility must be %q or %q, got %q", EvaluatorExpr, EvaluatorCEL, c.Visibility)
	}
	return nil
}

// Logger builds the CLI logger: a development logger when verbose, a no-op
// logger otherwise.
func (c *Config) Logger() (*zap.Logger, error) {
	if !c.Verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// Evaluator builds the configured visibility evaluator.
func (c *Config) Evaluator() (visibility.Evaluator, error) {
	if c.Visibility == EvaluatorCEL {
		ev, err := cel.New()
		if err != nil {
			return nil, fmt.Errorf("config: cel evaluator: %w", err)
		}
		return ev, nil
	}
	return expr.New(), nil
}

// EngineOptions translates the configuration into engine options.
func (c *Config) EngineOptions(logger *zap.Logger) ([]engine.Option, error) {
	policy, err := resolver.ParseMissingPolicy(c.Missing)
	if err != nil {
		return nil, err
	}
	evaluator, err := c.Evaluator()
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithLocale(c.Locale),
		engine.WithDebug(c.Debug),
		engine.WithStrict(c.Strict),
		engine.WithMissingPolicy(policy),
		engine.WithEvaluator(evaluator),
		engine.WithLogger(logger),
	}
	if c.Messages != "" {
		data, err := os.ReadFile(c.Messages)
		if err != nil {
			return nil, fmt.Errorf("config: messages: %w", err)
		}
		catalog, err := validation.LoadCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("config: messages: %w", err)
		}
		opts = append(opts, engine.WithMessages(catalog))
	}
	return opts, nil
}

// Package config loads avrca settings from defaults, an optional YAML file
// and AVRCA_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags "-X .../config.Version=...".
var Version = "dev"

// EnvPrefix prefixes every environment variable; "output.sink" is read from
// AVRCA_OUTPUT_SINK.
const EnvPrefix = "AVRCA"

// Config holds all avrca configuration.
type Config struct {
	Parser     ParserConfig     `yaml:"parser"`
	Correlator CorrelatorConfig `yaml:"correlator"`
	RCA        RCAConfig        `yaml:"rca"`
	Enrich     EnrichConfig     `yaml:"enrich"`
	Output     OutputConfig     `yaml:"output"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// ParserConfig controls file discovery and parse concurrency.
type ParserConfig struct {
	Workers   int    `yaml:"workers" validate:"min=1,max=256"`
	Recursive bool   `yaml:"recursive"`
	Pattern   string `yaml:"pattern"`
}

// CorrelatorConfig holds the correlation window.
type CorrelatorConfig struct {
	Window time.Duration `yaml:"window"`
}

// RCAConfig points at an optional known-pattern file. Empty means the
// built-in patterns.
type RCAConfig struct {
	PatternsPath string `yaml:"patterns_path"`
}

// EnrichConfig holds the asset database and IP-to-room map locations.
type EnrichConfig struct {
	Enabled    bool   `yaml:"enabled"`
	AssetsPath string `yaml:"assets_path"`
	IPMapPath  string `yaml:"ip_map_path"`
}

// OutputConfig selects and tunes the event sinks used by ingest. Sink is a
// comma-separated list; events go to every sink named. FileKeep bounds the
// rotated segments kept per partition and FilePartition writes one events
// file per input file. WebhookMinSeverity, when set, limits the webhook sink
// to events at or above that severity.
type OutputConfig struct {
	Sink               string `yaml:"sink" validate:"sinks"`
	Verbosity          string `yaml:"verbosity" validate:"oneof=minimal standard full"`
	Pretty             bool   `yaml:"pretty"`
	FilePath           string `yaml:"file_path"`
	FileMaxSize        int64  `yaml:"file_max_size" validate:"min=0"`
	FileKeep           int    `yaml:"file_keep" validate:"min=1"`
	FilePartition      bool   `yaml:"file_partition"`
	StorePath          string `yaml:"store_path"`
	WebhookURL         string `yaml:"webhook_url" validate:"omitempty,url"`
	WebhookMinSeverity string `yaml:"webhook_min_severity" validate:"omitempty,oneof=debug info notice warning error critical"`
	Async              bool   `yaml:"async"`
	BufferSize         int    `yaml:"buffer_size" validate:"min=1"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"min=1"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

var defaults = map[string]any{
	"parser.workers":              4,
	"parser.recursive":            false,
	"parser.pattern":              "",
	"correlator.window":           300 * time.Second,
	"rca.patterns_path":           "",
	"enrich.enabled":              true,
	"enrich.assets_path":          "",
	"enrich.ip_map_path":          "",
	"output.sink":                 "stdout",
	"output.verbosity":            "standard",
	"output.pretty":               false,
	"output.file_path":            "avrca-events.jsonl",
	"output.file_max_size":        int64(0),
	"output.file_keep":            10,
	"output.file_partition":       false,
	"output.store_path":           "avrca-store",
	"output.webhook_url":          "",
	"output.webhook_min_severity": "",
	"output.async":                false,
	"output.buffer_size":          1024,
	"server.addr":                 ":8080",
	"server.shutdown_timeout":     10 * time.Second,
	"server.max_body_bytes":       int64(10 << 20),
	"log.level":                   "info",
	"log.format":                  "text",
}

// Load builds a Config. path may be empty; a named file that does not exist
// is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	return Config{
		Parser: ParserConfig{
			Workers:   v.GetInt("parser.workers"),
			Recursive: v.GetBool("parser.recursive"),
			Pattern:   v.GetString("parser.pattern"),
		},
		Correlator: CorrelatorConfig{Window: v.GetDuration("correlator.window")},
		RCA:        RCAConfig{PatternsPath: v.GetString("rca.patterns_path")},
		Enrich: EnrichConfig{
			Enabled:    v.GetBool("enrich.enabled"),
			AssetsPath: v.GetString("enrich.assets_path"),
			IPMapPath:  v.GetString("enrich.ip_map_path"),
		},
		Output: OutputConfig{
			Sink:               strings.ToLower(v.GetString("output.sink")),
			Verbosity:          strings.ToLower(v.GetString("output.verbosity")),
			Pretty:             v.GetBool("output.pretty"),
			FilePath:           v.GetString("output.file_path"),
			FileMaxSize:        v.GetInt64("output.file_max_size"),
			FileKeep:           v.GetInt("output.file_keep"),
			FilePartition:      v.GetBool("output.file_partition"),
			StorePath:          v.GetString("output.store_path"),
			WebhookURL:         v.GetString("output.webhook_url"),
			WebhookMinSeverity: strings.ToLower(v.GetString("output.webhook_min_severity")),
			Async:              v.GetBool("output.async"),
			BufferSize:         v.GetInt("output.buffer_size"),
		},
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			MaxBodyBytes:    v.GetInt64("server.max_body_bytes"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}, nil
}

// SinkNames lists the accepted sink names.
var SinkNames = []string{"stdout", "file", "store", "webhook"}

// Sinks splits Sink into trimmed, non-empty names.
func (o OutputConfig) Sinks() []string {
	var out []string
	for _, s := range strings.Split(o.Sink, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (o OutputConfig) hasSink(name string) bool {
	return slices.Contains(o.Sinks(), name)
}

func validSinks(fl validator.FieldLevel) bool {
	names := OutputConfig{Sink: fl.Field().String()}.Sinks()
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if !slices.Contains(SinkNames, n) {
			return false
		}
	}
	return true
}

var validate = func() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sinks", validSinks)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	})
	return v
}()

// Validate reports every invalid setting at once. Messages name the
// environment variable that controls the setting.
func (c Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return fmt.Errorf("config: %w", err)
		}
		for _, fe := range ve {
			errs = append(errs, fmt.Errorf("%s: invalid value %v (rule %s)", envName(fe.Namespace()), fe.Value(), ruleText(fe)))
		}
	}

	if c.Correlator.Window < 0 {
		errs = append(errs, fmt.Errorf("%s: correlation window must not be negative, got %v", envName("correlator.window"), c.Correlator.Window))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("%s: shutdown timeout must not be negative", envName("server.shutdown_timeout")))
	}
	if c.Output.hasSink("webhook") && c.Output.WebhookURL == "" {
		errs = append(errs, fmt.Errorf("%s is required when the sink is webhook", envName("output.webhook_url")))
	}
	if c.Output.hasSink("file") && c.Output.FilePath == "" {
		errs = append(errs, fmt.Errorf("%s is required when the sink is file", envName("output.file_path")))
	}
	for key, path := range map[string]string{
		"rca.patterns_path":  c.RCA.PatternsPath,
		"enrich.assets_path": c.Enrich.AssetsPath,
		"enrich.ip_map_path": c.Enrich.IPMapPath,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("%s: file not found: %s", envName(key), path))
		}
	}
	return errors.Join(errs...)
}

func ruleText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// envName turns "Config.output.sink" or "output.sink" into AVRCA_OUTPUT_SINK.
func envName(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 && namespace[:i] == "Config" {
		namespace = namespace[i+1:]
	}
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(namespace, ".", "_"))
}

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/3leaps/prowscope/pkg/eventstore"
	"github.com/3leaps/prowscope/pkg/match"
	"github.com/3leaps/prowscope/pkg/usage"
)

// EnvPrefix is the prefix of every prowscope environment variable.
const EnvPrefix = "PROWSCOPE"

// DefaultEnvFile is loaded when present and no other file is given.
const DefaultEnvFile = ".env"

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// EnvSpec maps a configuration key to the environment variables read for it,
// in precedence order.
type EnvSpec struct {
	Path  string
	Names []string
}

// legacyEnv lists the unprefixed variables the deployment manifests set.
var legacyEnv = map[string]string{
	"elasticsearch.url":         "ES_URL",
	"elasticsearch.username":    "ES_USER",
	"elasticsearch.password":    "ES_PASSWORD",
	"elasticsearch.job_index":   "ES_JOB_INDEX",
	"elasticsearch.step_index":  "ES_STEP_INDEX",
	"elasticsearch.usage_index": "ES_USAGE_INDEX",
	"feed.url":                  "JOB_LIST_URL",
	"storage.bucket":            "GCS_BUCKET_NAME",
	"slack.token":               "SLACK_BOT_TOKEN",
	"slack.channel":             "SLACK_CHANNEL_ID",
	"report.interval":           "REPORT_INTERVAL",
	"logging.level":             "LOG_LEVEL",
	"equinix.project_id":        "EQUINIX_PROJECT_ID",
	"equinix.token":             "EQUINIX_PROJECT_TOKEN",
}

// Options controls where Load reads configuration from.
type Options struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string

	// EnvFile is an optional dotenv file. When empty, DefaultEnvFile is
	// loaded if it exists.
	EnvFile string

	// Overrides take precedence over every other source.
	Overrides map[string]any
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("feed.url", "")
	v.SetDefault("feed.timeout", "60s")

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "https://storage.googleapis.com")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.profile", "")
	v.SetDefault("storage.anonymous", true)
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.rate_limit", 20.0)
	v.SetDefault("storage.burst", 10)

	v.SetDefault("elasticsearch.url", "")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.insecure_skip_verify", false)
	v.SetDefault("elasticsearch.max_retries", 3)
	v.SetDefault("elasticsearch.job_index", "jobs")
	v.SetDefault("elasticsearch.step_index", "steps")
	v.SetDefault("elasticsearch.usage_index", "usages")

	v.SetDefault("slack.token", "")
	v.SetDefault("slack.channel", "")
	v.SetDefault("slack.upload_attempts", 3)
	v.SetDefault("slack.upload_delay", "3s")

	v.SetDefault("equinix.base_url", usage.DefaultBaseURL)
	v.SetDefault("equinix.project_id", "")
	v.SetDefault("equinix.token", "")

	v.SetDefault("report.interval", "week")

	v.SetDefault("match.includes", match.DefaultIncludes)
	v.SetDefault("match.excludes", match.DefaultExcludes)

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "prowscope")

	v.SetDefault("dedupe.fields", eventstore.DefaultDedupeFields)
}

// EnvSpecs returns the environment variables bound to each key.
func EnvSpecs(v *viper.Viper) []EnvSpec {
	replacer := strings.NewReplacer(".", "_")
	keys := v.AllKeys()
	specs := make([]EnvSpec, 0, len(keys))
	for _, key := range keys {
		names := []string{EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		specs = append(specs, EnvSpec{Path: key, Names: names})
	}
	return specs
}

// New builds a viper instance with defaults and environment bindings.
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, spec := range EnvSpecs(v) {
		args := append([]string{spec.Path}, spec.Names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", spec.Path, err)
		}
	}
	return v, nil
}

// Load reads the configuration. Precedence is overrides, then environment
// (prefixed names before legacy names), then the config file, then
// defaults. The loaded config is also retained for GetConfig.
func Load(ctx context.Context, opts Options) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v, err := New()
	if err != nil {
		return nil, err
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	}

	for key, value := range flatten("", opts.Overrides) {
		v.Set(key, value)
	}

	cfg := &Config{}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	configMu.Lock()
	appConfig = cfg
	configMu.Unlock()

	return cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing default file is not an error.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// flatten turns nested override maps into dotted keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}

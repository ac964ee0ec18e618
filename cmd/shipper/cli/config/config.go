package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every shipper environment variable.
const EnvPrefix = "SHIPPER"

// Config represents the shipper CLI configuration.
// Use mapstructure tags for Viper unmarshaling.
type Config struct {
	Project  string `mapstructure:"project"`
	Platform string `mapstructure:"platform"`
	Device   string `mapstructure:"device"`

	// Source is the build output directory.
	Source string `mapstructure:"source"`
	// Output is where the archive is written. Defaults to the parent of Source.
	Output string `mapstructure:"output"`
	Format string `mapstructure:"format"`

	// Secret encrypts the outcome of early releases.
	Secret string `mapstructure:"secret"`

	Progress string        `mapstructure:"progress"`
	Timeout  time.Duration `mapstructure:"timeout"`

	GitHub    GitHubConfig     `mapstructure:"github"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

// GitHubConfig holds CI context and release page settings.
type GitHubConfig struct {
	Ref        string `mapstructure:"ref"`
	SHA        string `mapstructure:"sha"`
	Repository string `mapstructure:"repository"`
	Token      string `mapstructure:"token"`
	// APIURL overrides the API endpoint (GitHub Enterprise, tests).
	APIURL      string        `mapstructure:"api_url"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// MetricsConfig holds Pushgateway settings.
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

// ProviderConfig is one row of the provider table.
type ProviderConfig struct {
	Name    string `mapstructure:"name" yaml:"name,omitempty"`
	Kind    string `mapstructure:"kind" yaml:"kind"`
	Group   string `mapstructure:"group" yaml:"group,omitempty"`
	TagOnly bool   `mapstructure:"tag_only" yaml:"tag_only,omitempty"`

	URL   string `mapstructure:"url" yaml:"url,omitempty"`
	Token string `mapstructure:"token" yaml:"token,omitempty"`
	// TokenEnv names an environment variable holding the token.
	TokenEnv string            `mapstructure:"token_env" yaml:"token_env,omitempty"`
	Username string            `mapstructure:"username" yaml:"username,omitempty"`
	Password string            `mapstructure:"password" yaml:"password,omitempty"`
	Fields   map[string]string `mapstructure:"fields" yaml:"fields,omitempty"`

	Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	Insecure bool `mapstructure:"insecure" yaml:"insecure,omitempty"`
	SkipPin  bool `mapstructure:"skip_pin" yaml:"skip_pin,omitempty"`
}

// DefaultProviders is the provider table used when none is configured:
// the release page first, then public hosts, the pinning service and the
// private relay.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Kind: "github", Group: "primary", TagOnly: true},
		{Name: "anonymousfiles.io", Kind: "form", URL: "https://api.anonymousfiles.io", Fields: map[string]string{"expires": "6m"}},
		{Name: "file.io", Kind: "form", URL: "https://file.io", Fields: map[string]string{"expires": "1y"}},
		{Name: "Infura", Kind: "ipfs", URL: "https://ipfs.infura.io:5001", TagOnly: true},
		{Name: "DreamLink", Kind: "relay", URL: "http://api.link.dreamnet.tech/add", TokenEnv: "DREAMLINK_TOKEN", TagOnly: true},
	}
}

// envBindings maps config keys to the CI variables read in addition to
// their SHIPPER_ names.
var envBindings = map[string]string{
	"github.ref":        "GITHUB_REF",
	"github.sha":        "GITHUB_SHA",
	"github.repository": "GITHUB_REPOSITORY",
	"github.token":      "GITHUB_TOKEN",
	"github.api_url":    "GITHUB_API_URL",
	"platform":          "BUILD_PLATFORM",
	"device":            "BUILD_DEVICE",
}

// Setup applies defaults and environment bindings to v.
func Setup(v *viper.Viper) error {
	for _, key := range []string{"project", "source", "output", "secret", "metrics.pushgateway"} {
		v.SetDefault(key, "")
	}
	v.SetDefault("format", "tar.zst")
	v.SetDefault("progress", "auto")
	v.SetDefault("timeout", 6*time.Minute)
	v.SetDefault("github.max_attempts", 5)
	v.SetDefault("github.retry_delay", time.Second)
	v.SetDefault("metrics.job", "shipper")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, ci := range envBindings {
		shipperName := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(key, shipperName, ci); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load decodes the effective configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	return &cfg, nil
}

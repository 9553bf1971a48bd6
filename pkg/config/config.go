package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/mirrorengine/internal/schema"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every configuration problem found by LoadConfig.
var ErrInvalidConfig = errors.New("invalid configuration")

// Configuration keys.
const (
	KeyUser            = "user"
	KeyRepo            = "repo"
	KeySecret          = "secret"
	KeyBaseManifest    = "base_manifest"
	KeyIncludeManifest = "include_manifest"
	KeyLockfile        = "lockfile"
	KeyNameOverride    = "name_override"
	KeyLinkBlacklist   = "link_blacklist"
	KeyTimerScale      = "timer_scale"
	KeyBranch          = "branch"
	KeyPathPrefix      = "path_prefix"
	KeyCommitMessage   = "commit_message"
	KeyAuthScheme      = "auth_scheme"
	KeyAPIBaseURL      = "api_base_url"
	KeyContentBaseURL  = "content_base_url"
	KeyRefreshManifest = "refresh_manifest"
	KeyShortRules      = "validation.short_rules"
	KeyAllow           = "validation.allow"
	KeyLogDir          = "log_dir"
)

// EnvPrefix prefixes every environment override, e.g. MIRRORENGINE_TIMER_SCALE.
const EnvPrefix = "MIRRORENGINE"

// Config holds all configuration for the mirror engine
type Config struct {
	User            string           `mapstructure:"user" json:"user,omitempty" yaml:"user" toml:"user"`
	Repo            string           `mapstructure:"repo" json:"repo,omitempty" yaml:"repo" toml:"repo"`
	Secret          string           `mapstructure:"secret" json:"secret,omitempty" yaml:"secret" toml:"secret"`
	BaseManifest    string           `mapstructure:"base_manifest" json:"base_manifest,omitempty" yaml:"base_manifest" toml:"base_manifest"`
	IncludeManifest string           `mapstructure:"include_manifest" json:"include_manifest,omitempty" yaml:"include_manifest" toml:"include_manifest"`
	Lockfile        string           `mapstructure:"lockfile" json:"lockfile,omitempty" yaml:"lockfile" toml:"lockfile"`
	NameOverride    string           `mapstructure:"name_override" json:"name_override,omitempty" yaml:"name_override" toml:"name_override"`
	LinkBlacklist   string           `mapstructure:"link_blacklist" json:"link_blacklist,omitempty" yaml:"link_blacklist" toml:"link_blacklist"`
	TimerScale      int              `mapstructure:"timer_scale" json:"timer_scale" yaml:"timer_scale" toml:"timer_scale"`
	Branch          string           `mapstructure:"branch" json:"branch,omitempty" yaml:"branch" toml:"branch"`
	PathPrefix      string           `mapstructure:"path_prefix" json:"path_prefix" yaml:"path_prefix" toml:"path_prefix"`
	CommitMessage   string           `mapstructure:"commit_message" json:"commit_message,omitempty" yaml:"commit_message" toml:"commit_message"`
	AuthScheme      string           `mapstructure:"auth_scheme" json:"auth_scheme,omitempty" yaml:"auth_scheme" toml:"auth_scheme"`
	APIBaseURL      string           `mapstructure:"api_base_url" json:"api_base_url,omitempty" yaml:"api_base_url" toml:"api_base_url"`
	ContentBaseURL  string           `mapstructure:"content_base_url" json:"content_base_url,omitempty" yaml:"content_base_url" toml:"content_base_url"`
	RefreshManifest bool             `mapstructure:"refresh_manifest" json:"refresh_manifest" yaml:"refresh_manifest" toml:"refresh_manifest"`
	Validation      ValidationConfig `mapstructure:"validation" json:"validation" yaml:"validation" toml:"validation"`
	LogDir          string           `mapstructure:"log_dir" json:"log_dir,omitempty" yaml:"log_dir" toml:"log_dir"`

	// Source is the file the configuration was read from, empty when none was found.
	Source string `mapstructure:"-" json:"-" yaml:"-" toml:"-"`
}

// ValidationConfig holds content checks applied before publishing
type ValidationConfig struct {
	ShortRules bool     `mapstructure:"short_rules" json:"short_rules" yaml:"short_rules" toml:"short_rules"`
	Allow      []string `mapstructure:"allow" json:"allow,omitempty" yaml:"allow" toml:"allow"`
}

var defaults = map[string]interface{}{
	KeyTimerScale:      1,
	KeyBranch:          "master",
	KeyPathPrefix:      "raw/",
	KeyCommitMessage:   "Automatic mirror update - Mirror Engine v{{version}}",
	KeyAuthScheme:      "basic",
	KeyAPIBaseURL:      "https://api.github.com",
	KeyContentBaseURL:  "https://raw.githubusercontent.com",
	KeyRefreshManifest: false,
	KeyShortRules:      false,
	KeyAllow:           []string{},
}

// legacyAliases maps keys of older configuration files to their current names.
var legacyAliases = map[string]string{
	"data": KeyBaseManifest,
	"lock": KeyLockfile,
}

// flagKeys maps command-line flags to the keys they override.
var flagKeys = map[string]string{
	"timer-scale":      KeyTimerScale,
	"refresh-manifest": KeyRefreshManifest,
	"branch":           KeyBranch,
	"log-dir":          KeyLogDir,
}

var allKeys = []string{
	KeyUser, KeyRepo, KeySecret, KeyBaseManifest, KeyIncludeManifest, KeyLockfile,
	KeyNameOverride, KeyLinkBlacklist, KeyTimerScale, KeyBranch, KeyPathPrefix,
	KeyCommitMessage, KeyAuthScheme, KeyAPIBaseURL, KeyContentBaseURL,
	KeyRefreshManifest, KeyShortRules, KeyAllow, KeyLogDir,
}

var configExtensions = []string{"json", "yaml", "yml", "toml"}

// Options control where LoadConfig looks for settings.
type Options struct {
	// File is an explicit configuration file; discovery is skipped when set.
	File string
	// Home overrides the user home directory used for discovery.
	Home string
	// Flags, when set, may override keys registered by AddFlags.
	Flags *pflag.FlagSet
}

// AddFlags registers the flags that can override configuration keys.
func AddFlags(fs *pflag.FlagSet) {
	fs.Int("timer-scale", 1, "Multiply all cycle timers (1-10)")
	fs.Bool("refresh-manifest", false, "Re-resolve the manifest at the start of every pass")
	fs.String("branch", "master", "Branch to publish to")
	fs.String("log-dir", "", "Directory for per-run log files and crash records")
}

// LoadConfig loads configuration from the discovered file, the environment and flags.
// When only validation fails, the decoded config is returned along with the error.
func LoadConfig(opts Options) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range allKeys {
		_ = v.BindEnv(k)
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	source, err := locate(opts)
	if err != nil {
		return nil, err
	}
	if source != "" {
		v.SetConfigFile(source)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, source, err)
		}
	}

	for old, key := range legacyAliases {
		if !v.IsSet(key) && v.IsSet(old) {
			v.Set(key, v.Get(old))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.Source = source
	if cfg.Validation.Allow == nil {
		cfg.Validation.Allow = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// locate returns the configuration file to read, or "" when none exists.
func locate(opts Options) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return opts.File, nil
	}

	home := opts.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return "", nil
		}
		home = h
	}

	var candidates []string
	for _, ext := range configExtensions {
		candidates = append(candidates, filepath.Join(home, "mirror-engine-config."+ext))
	}
	for _, ext := range configExtensions {
		candidates = append(candidates, filepath.Join(home, ".mirrorengine", "config."+ext))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", nil
}

// Validate checks the settings against the embedded configuration schema and
// the rules the schema cannot express.
func (c *Config) Validate() error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var problems []string
	res, err := schema.ValidateJSON(doc, schema.MirrorConfig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !res.Valid {
		problems = append(problems, res.Summary())
	}

	if c.User != "" && strings.ContainsAny(c.User, "/ ") {
		problems = append(problems, "user: must not contain '/' or spaces")
	}
	if c.Repo != "" && strings.ContainsAny(c.Repo, "/ ") {
		problems = append(problems, "repo: must not contain '/' or spaces")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy safe to print: the secret is masked.
func (c Config) Redacted() Config {
	if c.Secret != "" {
		c.Secret = "********"
	}
	c.Validation.Allow = append([]string{}, c.Validation.Allow...)
	return c
}

// GetHome returns the mirror engine home directory
func GetHome() (string, error) {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %v", err)
	}

	return filepath.Join(homeDir, ".mirrorengine"), nil
}

// GetLogDir returns the directory for run logs and crash records, creating it.
// The configured log_dir wins over the home directory default.
func (c *Config) GetLogDir() (string, error) {
	logDir := c.LogDir
	if logDir == "" {
		home, err := GetHome()
		if err != nil {
			return "", err
		}
		logDir = filepath.Join(home, "logs")
	}
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create log directory: %v", err)
	}
	return logDir, nil
}

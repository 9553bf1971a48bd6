package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validYAML = `user: mirror-bot
repo: filters
secret: s3cr3t
base_manifest: https://example.com/base.json
include_manifest: https://example.com/include.json
lockfile: https://example.com/lock.txt
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "mirror-engine-config.yaml", validYAML)

	cfg, err := LoadConfig(Options{Home: home})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "mirror-engine-config.yaml"), cfg.Source)
	assert.Equal(t, "mirror-bot", cfg.User)
	assert.Equal(t, 1, cfg.TimerScale)
	assert.Equal(t, "master", cfg.Branch)
	assert.Equal(t, "raw/", cfg.PathPrefix)
	assert.Equal(t, "basic", cfg.AuthScheme)
	assert.Equal(t, "https://api.github.com", cfg.APIBaseURL)
	assert.Equal(t, "https://raw.githubusercontent.com", cfg.ContentBaseURL)
	assert.Contains(t, cfg.CommitMessage, "{{version}}")
	assert.False(t, cfg.RefreshManifest)
	assert.Empty(t, cfg.NameOverride)
	assert.Empty(t, cfg.LinkBlacklist)
	assert.NotNil(t, cfg.Validation.Allow)
}

func TestLoadConfigDiscoveryOrder(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, ".mirrorengine/config.yaml", strings.Replace(validYAML, "filters", "from-dir", 1))

	cfg, err := LoadConfig(Options{Home: home})
	require.NoError(t, err)
	assert.Equal(t, "from-dir", cfg.Repo)

	writeFile(t, home, "mirror-engine-config.json", `{
  "user": "json-user", "repo": "from-home", "secret": "x",
  "base_manifest": "https://example.com/b", "include_manifest": "https://example.com/i",
  "lockfile": "https://example.com/l"
}`)

	cfg, err = LoadConfig(Options{Home: home})
	require.NoError(t, err)
	assert.Equal(t, "from-home", cfg.Repo)
	assert.Equal(t, "json-user", cfg.User)
}

func TestLoadConfigExplicitFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "custom.toml", `
user = "toml-user"
repo = "filters"
secret = "x"
base_manifest = "https://example.com/b"
include_manifest = "https://example.com/i"
lockfile = "https://example.com/l"
timer_scale = 3

[validation]
short_rules = true
allow = ["a", "bc"]
`)

	cfg, err := LoadConfig(Options{File: p, Home: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "toml-user", cfg.User)
	assert.Equal(t, 3, cfg.TimerScale)
	assert.True(t, cfg.Validation.ShortRules)
	assert.Equal(t, []string{"a", "bc"}, cfg.Validation.Allow)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(Options{File: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigLegacyAliases(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "mirror-engine-config.yaml", `user: u
repo: r
secret: s
data: https://example.com/legacy-base.json
include_manifest: https://example.com/include.json
lock: https://example.com/legacy-lock.txt
`)

	cfg, err := LoadConfig(Options{Home: home})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/legacy-base.json", cfg.BaseManifest)
	assert.Equal(t, "https://example.com/legacy-lock.txt", cfg.Lockfile)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "mirror-engine-config.yaml", validYAML)
	t.Setenv("MIRRORENGINE_TIMER_SCALE", "4")
	t.Setenv("MIRRORENGINE_REPO", "env-repo")
	t.Setenv("MIRRORENGINE_VALIDATION_SHORT_RULES", "true")

	cfg, err := LoadConfig(Options{Home: home})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.TimerScale)
	assert.Equal(t, "env-repo", cfg.Repo)
	assert.True(t, cfg.Validation.ShortRules)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "mirror-engine-config.yaml", validYAML+"timer_scale: 2\n")

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	AddFlags(fs)

	cfg, err := LoadConfig(Options{Home: home, Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.TimerScale, "unset flag must not override the file")

	require.NoError(t, fs.Parse([]string{"--timer-scale=7", "--branch=main", "--refresh-manifest"}))
	cfg, err = LoadConfig(Options{Home: home, Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.TimerScale)
	assert.Equal(t, "main", cfg.Branch)
	assert.True(t, cfg.RefreshManifest)
}

func TestLoadConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing required",
			content: "user: u\nrepo: r\n",
			want:    "secret",
		},
		{
			name:    "insecure lockfile",
			content: strings.Replace(validYAML, "https://example.com/lock.txt", "http://example.com/lock.txt", 1),
			want:    "lockfile",
		},
		{
			name:    "insecure override link",
			content: validYAML + "name_override: http://example.com/o.json\n",
			want:    "name_override",
		},
		{
			name:    "timer scale too large",
			content: validYAML + "timer_scale: 11\n",
			want:    "timer_scale",
		},
		{
			name:    "unknown auth scheme",
			content: validYAML + "auth_scheme: digest\n",
			want:    "auth_scheme",
		},
		{
			name:    "absolute path prefix",
			content: validYAML + "path_prefix: /raw/\n",
			want:    "path_prefix",
		},
		{
			name:    "repo with slash",
			content: strings.Replace(validYAML, "repo: filters", "repo: org/filters", 1),
			want:    "repo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			writeFile(t, home, "mirror-engine-config.yaml", tt.content)

			cfg, err := LoadConfig(Options{Home: home})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotNil(t, cfg)
		})
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "mirror-engine-config.json", `{"user": `)

	_, err := LoadConfig(Options{Home: home})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRedacted(t *testing.T) {
	c := Config{Secret: "token", Validation: ValidationConfig{Allow: []string{"a"}}}
	r := c.Redacted()

	assert.Equal(t, "********", r.Secret)
	assert.Equal(t, "token", c.Secret)

	r.Validation.Allow[0] = "changed"
	assert.Equal(t, "a", c.Validation.Allow[0])

	assert.Empty(t, Config{}.Redacted().Secret)
}

func TestRender(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "mirror-engine-config.yaml", validYAML)
	cfg, err := LoadConfig(Options{Home: home})
	require.NoError(t, err)

	for _, format := range []string{FormatYAML, FormatJSON, FormatTOML} {
		t.Run(format, func(t *testing.T) {
			out, err := Render(*cfg, format)
			require.NoError(t, err)
			assert.NotContains(t, string(out), "s3cr3t")

			decoded := map[string]interface{}{}
			switch format {
			case FormatYAML:
				require.NoError(t, yaml.Unmarshal(out, &decoded))
			case FormatJSON:
				require.NoError(t, json.Unmarshal(out, &decoded))
			case FormatTOML:
				require.NoError(t, toml.Unmarshal(out, &decoded))
			}
			assert.Equal(t, "mirror-bot", decoded["user"])
			assert.Equal(t, "********", decoded["secret"])
		})
	}

	_, err = Render(*cfg, "xml")
	assert.Error(t, err)
}

func TestGetLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := &Config{LogDir: dir}

	got, err := cfg.GetLogDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)

	home := t.TempDir()
	t.Setenv("MIRRORENGINE_HOME", home)
	got, err = (&Config{}).GetLogDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), got)
}

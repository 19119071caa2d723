// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"postbot/internal/errors"
)

type Config struct {
	GitHub struct {
		BaseURL    string        `mapstructure:"base_url"`
		Owner      string        `mapstructure:"owner"`
		Repository string        `mapstructure:"repository"`
		Branch     string        `mapstructure:"branch"`
		Token      string        `mapstructure:"token"`
		Timeout    time.Duration `mapstructure:"timeout"`
		Retries    int           `mapstructure:"retries"`
	} `mapstructure:"github"`

	Blog struct {
		PostsRoot        string `mapstructure:"posts_root"`
		ImageRoot        string `mapstructure:"image_root"`
		Timezone         string `mapstructure:"timezone"`
		ImageQuality     int    `mapstructure:"image_quality"`
		BatchConcurrency int    `mapstructure:"batch_concurrency"`
	} `mapstructure:"blog"`

	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Journal struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"journal"`

	Drafts struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"drafts"`

	Environment string `mapstructure:"environment"` // dev, prod
	LogLevel    string `mapstructure:"log_level"`   // debug, info, warn, error
}

// legacyEnv maps the variable names the bot was historically deployed
// with onto config keys.
var legacyEnv = map[string]string{
	"github.owner":      "GITHUB_ORG",
	"github.token":      "GHP_TOKEN",
	"github.repository": "BLOG_REPOSITORY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.branch", "main")
	v.SetDefault("github.timeout", 10*time.Second)
	v.SetDefault("github.retries", 3)

	v.SetDefault("blog.posts_root", "_posts")
	v.SetDefault("blog.image_root", "posts")
	v.SetDefault("blog.timezone", "UTC")
	v.SetDefault("blog.image_quality", 85)
	v.SetDefault("blog.batch_concurrency", 1)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)

	v.SetDefault("journal.path", ".postbot/journal")
	v.SetDefault("drafts.dir", "drafts")

	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
}

// Load reads the optional config file at path (yaml or json), then lets
// POSTBOT_* and the legacy variables override it. An empty path looks
// for postbot.{yaml,json} in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("postbot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "POSTBOT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("postbot")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the keys every store-backed command needs.
func (c *Config) Validate() error {
	var missing []string
	if c.GitHub.Owner == "" {
		missing = append(missing, "github.owner")
	}
	if c.GitHub.Repository == "" {
		missing = append(missing, "github.repository")
	}
	if c.GitHub.Token == "" {
		missing = append(missing, "github.token")
	}
	if len(missing) > 0 {
		return errors.ValidationError("missing required configuration", missing)
	}
	if c.GitHub.Timeout <= 0 {
		return errors.ValidationError("github.timeout must be positive", c.GitHub.Timeout.String())
	}
	if _, err := time.LoadLocation(c.Blog.Timezone); err != nil {
		return errors.ValidationError("unknown blog.timezone", c.Blog.Timezone)
	}
	return nil
}

// Location returns the timezone post dates are written in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Blog.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "XINWEN"

// DateLayout is the YYYYMMDD form accepted by --date and the news API.
const DateLayout = "20060102"

// Config holds the application configuration loaded from flags, environment variables and defaults.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	Channel  string `mapstructure:"lm"`
	Service  string `mapstructure:"service"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Dev      bool   `mapstructure:"dev"`
	Date     string `mapstructure:"date"`

	ChannelsFile       string        `mapstructure:"channels_file"`
	NewsAPIBase        string        `mapstructure:"news_api_base"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`
	ImageProxy         string        `mapstructure:"image_proxy"`
	PostLanguages      []string      `mapstructure:"post_languages"`
	PreviewLimit       int           `mapstructure:"preview_limit"`

	StorageType         string        `mapstructure:"storage_type"`
	DedupPath           string        `mapstructure:"dedup_path"`
	DedupWindowHours    int64         `mapstructure:"dedup_window_hours"`
	DedupRetentionHours int64         `mapstructure:"dedup_retention_hours"`
	DedupWindow         time.Duration `mapstructure:"-"`
	DedupRetention      time.Duration `mapstructure:"-"`

	NotifiersFile string `mapstructure:"notifiers_file"`

	SnapshotEnabled     bool     `mapstructure:"snapshot_enabled"`
	SnapshotPaths       []string `mapstructure:"snapshot_paths"`
	SnapshotMessage     string   `mapstructure:"snapshot_message"`
	SnapshotAuthorName  string   `mapstructure:"snapshot_author_name"`
	SnapshotAuthorEmail string   `mapstructure:"snapshot_author_email"`
}

// Load reads configuration from command-line args, environment variables and configs/.env.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "xinwen-sky")
	v.SetDefault("app_env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("service", "default")
	v.SetDefault("channels_file", "")
	v.SetDefault("news_api_base", "https://api.cntv.cn")
	v.SetDefault("http_timeout_seconds", 15)
	v.SetDefault("image_proxy", "")
	v.SetDefault("post_languages", []string{"zh"})
	v.SetDefault("preview_limit", 3)
	v.SetDefault("storage_type", "json")
	v.SetDefault("dedup_path", "12h_news.json")
	v.SetDefault("dedup_window_hours", 12)
	v.SetDefault("dedup_retention_hours", 48)
	v.SetDefault("notifiers_file", "")
	v.SetDefault("snapshot_enabled", true)
	v.SetDefault("snapshot_paths", []string{"."})
	v.SetDefault("snapshot_message", "update from robot")
	v.SetDefault("snapshot_author_name", "robot auto")
	v.SetDefault("snapshot_author_email", "robot@localhost")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if err := v.BindPFlag("log_level", fs.Lookup("log-level")); err != nil {
		return nil, fmt.Errorf("bind log-level flag: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("poster", pflag.ContinueOnError)
	fs.String("lm", "", "channel alias to post (e.g. xwlb, xw30f)")
	fs.String("service", "default", `Bluesky PDS endpoint, or "default"`)
	fs.String("username", "", "Bluesky handle or email")
	fs.String("password", "", "Bluesky app password")
	fs.Bool("dev", false, "preview mode: post at most preview_limit items and skip the snapshot hook")
	fs.String("date", "", "news date as YYYYMMDD (defaults to today in UTC+8)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	return fs
}

func (c *Config) normalize() error {
	c.Channel = strings.TrimSpace(c.Channel)
	c.Service = strings.TrimSpace(c.Service)
	c.Date = strings.TrimSpace(c.Date)
	c.StorageType = strings.ToLower(strings.TrimSpace(c.StorageType))

	if c.Date != "" {
		if _, err := time.Parse(DateLayout, c.Date); err != nil {
			return fmt.Errorf("invalid date %q (expected YYYYMMDD): %w", c.Date, err)
		}
	}

	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second

	if c.DedupWindowHours <= 0 {
		return fmt.Errorf("invalid dedup_window_hours (must be positive hours)")
	}
	if c.DedupRetentionHours < c.DedupWindowHours {
		return fmt.Errorf("invalid dedup_retention_hours (must be >= dedup_window_hours)")
	}
	c.DedupWindow = time.Duration(c.DedupWindowHours) * time.Hour
	c.DedupRetention = time.Duration(c.DedupRetentionHours) * time.Hour

	if strings.TrimSpace(c.DedupPath) == "" {
		return fmt.Errorf("dedup_path is required")
	}
	if c.PreviewLimit <= 0 {
		return fmt.Errorf("invalid preview_limit (must be positive)")
	}
	if len(c.PostLanguages) == 0 {
		return fmt.Errorf("post_languages must contain at least one language tag")
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "***"
	}
	return c
}

package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Category names are a fixed set; anything else in the config file is rejected.
const (
	Technology       = "technology"
	CorporateFinance = "corporate_finance"
	EAMBuildUp       = "eam_build_up"
)

// AllCategories returns the known categories in processing order.
func AllCategories() []string {
	return []string{Technology, CorporateFinance, EAMBuildUp}
}

const (
	envAIKey       = "ARYES_AI_KEY"
	envLedger      = "ARYES_LEDGER"
	envWebhookBase = "SLACK_WEBHOOK_"
)

type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type Category struct {
	Webhook string `yaml:"webhook,omitempty"`
	Policy  string `yaml:"policy"`
	Feeds   []Feed `yaml:"feeds"`
}

type AIConfig struct {
	Provider string `yaml:"provider"` // "claude" or "openai"
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

type Config struct {
	Schedule   string               `yaml:"schedule"`
	Recency    string               `yaml:"recency"`
	Retention  string               `yaml:"retention"`
	Pace       string               `yaml:"pace"`
	LedgerPath string               `yaml:"ledger_path,omitempty"`
	AI         *AIConfig            `yaml:"ai,omitempty"`
	Categories map[string]*Category `yaml:"categories"`
}

// Channel is a category resolved for one run: its name, destination and feeds.
type Channel struct {
	Name    string
	Webhook string
	Policy  string
	Feeds   []Feed
}

// Active reports whether the channel has somewhere to publish to.
func (c Channel) Active() bool {
	return c.Webhook != ""
}

// Channels returns every known category in processing order, with webhooks
// resolved from the config file or SLACK_WEBHOOK_<CATEGORY>.
func (c *Config) Channels() []Channel {
	var out []Channel
	for _, name := range AllCategories() {
		ch := Channel{Name: name}
		if cat := c.Categories[name]; cat != nil {
			ch.Webhook = cat.Webhook
			ch.Policy = cat.Policy
			ch.Feeds = cat.Feeds
		}
		if v := os.Getenv(WebhookEnv(name)); v != "" {
			ch.Webhook = v
		}
		out = append(out, ch)
	}
	return out
}

// WebhookEnv is the environment variable holding a category's webhook URL.
func WebhookEnv(category string) string {
	return envWebhookBase + strings.ToUpper(category)
}

// AIEnabled returns true if a classifier credential is available.
func (c *Config) AIEnabled() bool {
	return c.AIKey() != ""
}

// AIKey returns the resolved API key (config or env var).
func (c *Config) AIKey() string {
	if c.AI != nil && c.AI.APIKey != "" {
		return c.AI.APIKey
	}
	return os.Getenv(envAIKey)
}

func (c *Config) ScheduleSpec() string {
	if c.Schedule == "" {
		return "@every 30m"
	}
	return c.Schedule
}

func (c *Config) RecencyDuration() time.Duration {
	return parseDuration(c.Recency, 24*time.Hour)
}

func (c *Config) RetentionDuration() time.Duration {
	return parseDuration(c.Retention, 7*24*time.Hour)
}

func (c *Config) PaceDuration() time.Duration {
	return parseDuration(c.Pace, time.Second)
}

// ResolvedLedgerPath returns ARYES_LEDGER, then ledger_path, then the XDG state file.
func (c *Config) ResolvedLedgerPath() string {
	if v := os.Getenv(envLedger); v != "" {
		return v
	}
	if c.LedgerPath != "" {
		return c.LedgerPath
	}
	return filepath.Join(xdg.StateHome, "aryes", "posted.json")
}

// ParseDuration accepts Go durations plus an "Nd" day suffix.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "aryes", "config.yaml")
}

func HistoryPath() string {
	return filepath.Join(xdg.CacheHome, "aryes", "history.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: the embedded defaults are still usable.
			_ = writeDefaults(path)
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	mergeDefaultCategories(&cfg, defaults)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeDefaultCategories fills in categories the user file leaves out.
// Categories present in the user file are kept as written.
func mergeDefaultCategories(cfg, defaults *Config) {
	if cfg.Categories == nil {
		cfg.Categories = make(map[string]*Category)
	}
	for name, cat := range defaults.Categories {
		if _, ok := cfg.Categories[name]; !ok {
			cp := *cat
			cfg.Categories[name] = &cp
		}
	}
	if cfg.AI == nil && defaults.AI != nil {
		ai := *defaults.AI
		cfg.AI = &ai
	}
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	known := make(map[string]bool)
	for _, name := range AllCategories() {
		known[name] = true
	}
	for name, cat := range cfg.Categories {
		if !known[name] {
			return fmt.Errorf("unknown category %q (valid: %s)", name, strings.Join(AllCategories(), ", "))
		}
		if cat == nil {
			continue
		}
		for i, f := range cat.Feeds {
			if f.Name == "" {
				return fmt.Errorf("category %q feed %d: name is required", name, i)
			}
			if f.URL == "" {
				return fmt.Errorf("category %q feed %q: url is required", name, f.Name)
			}
			u, err := url.Parse(f.URL)
			if err != nil {
				return fmt.Errorf("category %q feed %q: invalid url: %w", name, f.Name, err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("category %q feed %q: url scheme must be http or https, got %q", name, f.Name, u.Scheme)
			}
		}
	}
	if cfg.AI != nil && cfg.AI.Provider != "" && cfg.AI.Provider != "claude" && cfg.AI.Provider != "openai" {
		return fmt.Errorf("unknown AI provider %q (valid: claude, openai)", cfg.AI.Provider)
	}
	return nil
}

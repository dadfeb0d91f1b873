package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/briefops/briefops/internal/provider"
)

type Config struct {
	Environment string          `yaml:"environment"`
	Slack       SlackConfig     `yaml:"slack"`
	Models      ModelsConfig    `yaml:"models"`
	Agent       AgentConfig     `yaml:"agent"`
	Directory   DirectoryConfig `yaml:"directory"`
	Redis       RedisConfig     `yaml:"redis"`
	Tracker     TrackerConfig   `yaml:"tracker"`
	Archive     ArchiveConfig   `yaml:"archive"`
	Digests     []DigestConfig  `yaml:"digests"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
}

type ModelsConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

type ProviderConfig struct {
	BaseURL string               `yaml:"base_url"`
	APIKey  string               `yaml:"api_key"`
	API     string               `yaml:"api"`
	Models  []provider.ModelInfo `yaml:"models"`
}

type AgentConfig struct {
	Model       string   `yaml:"model"` // provider/model ref
	MaxTurns    int      `yaml:"max_turns"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

type DirectoryConfig struct {
	PostgresDSN string   `yaml:"postgres_dsn"`
	CacheTTL    Duration `yaml:"cache_ttl"`
}

// Duration unmarshals YAML strings like "5m" or "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TrackerConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token"`
	TeamID   string `yaml:"team_id"`
}

type ArchiveConfig struct {
	DataDir string `yaml:"data_dir"`
}

type DigestConfig struct {
	Name      string `yaml:"name"`
	Schedule  string `yaml:"schedule"` // cron expression
	Prompt    string `yaml:"prompt"`
	ChannelID string `yaml:"channel_id"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the /metrics listener
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func expandEnvSecrets(cfg *Config) {
	cfg.Slack.BotToken = expandEnv(cfg.Slack.BotToken)
	cfg.Slack.AppToken = expandEnv(cfg.Slack.AppToken)
	cfg.Directory.PostgresDSN = expandEnv(cfg.Directory.PostgresDSN)
	cfg.Redis.Addr = expandEnv(cfg.Redis.Addr)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	cfg.Tracker.BaseURL = expandEnv(cfg.Tracker.BaseURL)
	cfg.Tracker.APIToken = expandEnv(cfg.Tracker.APIToken)
	cfg.Tracker.TeamID = expandEnv(cfg.Tracker.TeamID)
	for name, p := range cfg.Models.Providers {
		p.BaseURL = expandEnv(p.BaseURL)
		p.APIKey = expandEnv(p.APIKey)
		cfg.Models.Providers[name] = p
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	expandEnvSecrets(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Agent.MaxTurns == 0 {
		cfg.Agent.MaxTurns = 100
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 2000
	}
	if cfg.Directory.CacheTTL == 0 {
		cfg.Directory.CacheTTL = Duration(5 * time.Minute)
	}
	if cfg.Archive.DataDir == "" {
		cfg.Archive.DataDir = "./data"
	}
}

// Validate checks the parts of the config the process cannot run without.
func (c *Config) Validate() error {
	if len(c.Models.Providers) == 0 {
		return fmt.Errorf("config: at least one model provider is required")
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("config: agent.model is required")
	}
	ref, err := provider.ParseModelRef(c.Agent.Model)
	if err != nil {
		return fmt.Errorf("config: agent.model: %w", err)
	}
	if _, ok := c.Models.Providers[ref.Provider()]; !ok {
		return fmt.Errorf("config: agent.model references unknown provider %q", ref.Provider())
	}
	if c.Agent.MaxTurns < 1 {
		return fmt.Errorf("config: agent.max_turns must be at least 1")
	}
	if t := c.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("config: agent.temperature must be between 0.0 and 2.0")
	}
	for i, d := range c.Digests {
		if d.Schedule == "" || d.Prompt == "" || d.ChannelID == "" {
			return fmt.Errorf("config: digests[%d]: schedule, prompt and channel_id are required", i)
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

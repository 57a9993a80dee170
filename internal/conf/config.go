package conf

import (
	"fmt"
	"time"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/biz"
	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/llm"
	wstypes "github.com/lk2023060901/competitor-scout-backend/internal/websearch/types"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig `mapstructure:"server"`
	Log      LogConfig    `mapstructure:"log"`
	LLM      llm.Config   `mapstructure:"llm"`
	Search   SearchConfig `mapstructure:"search"`
	Analysis biz.Config   `mapstructure:"analysis"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level            string        `mapstructure:"level"`
	Format           string        `mapstructure:"format"`
	Output           string        `mapstructure:"output"`
	File             FileLogConfig `mapstructure:"file"`
	EnableStacktrace bool          `mapstructure:"enablestacktrace"`
}

type FileLogConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"`
	MaxAge     int    `mapstructure:"maxage"`
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

// SearchConfig selects and configures the web search provider
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`

	Tavily  TavilyConfig  `mapstructure:"tavily"`
	SearXNG SearXNGConfig `mapstructure:"searxng"`
	Bocha   BochaConfig   `mapstructure:"bocha"`
}

type TavilyConfig struct {
	APIKey  string `mapstructure:"api_key"`
	APIHost string `mapstructure:"api_host"`
}

type SearXNGConfig struct {
	APIHost           string `mapstructure:"api_host"`
	BasicAuthUsername string `mapstructure:"basic_auth_username"`
	BasicAuthPassword string `mapstructure:"basic_auth_password"`
}

type BochaConfig struct {
	APIKey  string `mapstructure:"api_key"`
	APIHost string `mapstructure:"api_host"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// ProviderConfig maps the selected provider's settings onto the websearch
// provider configuration shape.
func (c *SearchConfig) ProviderConfig() (*wstypes.ProviderConfig, error) {
	timeout := int(c.Timeout / time.Second)

	switch wstypes.ProviderID(c.Provider) {
	case wstypes.ProviderTavily:
		return &wstypes.ProviderConfig{
			ID:         wstypes.ProviderTavily,
			Name:       "Tavily",
			APIHost:    orDefault(c.Tavily.APIHost, "https://api.tavily.com"),
			APIKey:     c.Tavily.APIKey,
			Timeout:    timeout,
			MaxRetries: c.MaxRetries,
		}, nil
	case wstypes.ProviderSearXNG:
		return &wstypes.ProviderConfig{
			ID:                wstypes.ProviderSearXNG,
			Name:              "SearXNG",
			APIHost:           c.SearXNG.APIHost,
			BasicAuthUsername: c.SearXNG.BasicAuthUsername,
			BasicAuthPassword: c.SearXNG.BasicAuthPassword,
			Timeout:           timeout,
			MaxRetries:        c.MaxRetries,
		}, nil
	case wstypes.ProviderBocha:
		return &wstypes.ProviderConfig{
			ID:         wstypes.ProviderBocha,
			Name:       "Bocha",
			APIHost:    orDefault(c.Bocha.APIHost, "https://api.bochaai.com"),
			APIKey:     c.Bocha.APIKey,
			Timeout:    timeout,
			MaxRetries: c.MaxRetries,
		}, nil
	default:
		return nil, fmt.Errorf("unknown search provider: %q", c.Provider)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

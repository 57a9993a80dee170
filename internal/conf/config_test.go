package conf

import (
	"testing"
	"time"

	wstypes "github.com/lk2023060901/competitor-scout-backend/internal/websearch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchConfig_ProviderConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   SearchConfig
		wantID   wstypes.ProviderID
		wantHost string
		wantErr  bool
	}{
		{
			name: "tavily with default host",
			config: SearchConfig{
				Provider: "tavily",
				Timeout:  15 * time.Second,
				Tavily:   TavilyConfig{APIKey: "tvly-key"},
			},
			wantID:   wstypes.ProviderTavily,
			wantHost: "https://api.tavily.com",
		},
		{
			name: "searxng with basic auth",
			config: SearchConfig{
				Provider: "searxng",
				SearXNG: SearXNGConfig{
					APIHost:           "https://search.internal",
					BasicAuthUsername: "user",
					BasicAuthPassword: "pass",
				},
			},
			wantID:   wstypes.ProviderSearXNG,
			wantHost: "https://search.internal",
		},
		{
			name: "bocha with custom host",
			config: SearchConfig{
				Provider: "bocha",
				Bocha:    BochaConfig{APIKey: "key", APIHost: "https://bocha.internal"},
			},
			wantID:   wstypes.ProviderBocha,
			wantHost: "https://bocha.internal",
		},
		{
			name:    "unknown provider",
			config:  SearchConfig{Provider: "duckduckgo"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := tt.config.ProviderConfig()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, pc.ID)
			assert.Equal(t, tt.wantHost, pc.APIHost)
		})
	}
}

func TestSearchConfig_TimeoutSeconds(t *testing.T) {
	config := SearchConfig{
		Provider: "tavily",
		Timeout:  30 * time.Second,
		Tavily:   TavilyConfig{APIKey: "k"},
	}

	pc, err := config.ProviderConfig()
	require.NoError(t, err)
	assert.Equal(t, 30, pc.Timeout)
}

package biz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/llm"
	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/types"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"
	wstypes "github.com/lk2023060901/competitor-scout-backend/internal/websearch/types"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const enricherSystemPrompt = `You are a product research assistant. From the provided search snippets about one product, list its concrete features and capabilities. Respond with JSON only: {"features": ["..."]}. List only features supported by the material.`

// EnrichConfig bounds the optional enrichment stage
type EnrichConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	TopK                 int           `mapstructure:"top_k"`
	Concurrency          int           `mapstructure:"concurrency"`
	ResultsPerCompetitor int           `mapstructure:"results_per_competitor"`
	SearchTimeout        time.Duration `mapstructure:"search_timeout"`
}

func (c *EnrichConfig) normalize() {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.ResultsPerCompetitor <= 0 {
		c.ResultsPerCompetitor = 3
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 15 * time.Second
	}
}

// Enricher deepens the top competitors' feature lists with one extra round
// of targeted search and extraction. Scores and reasons are never altered;
// per-competitor failures keep the pre-enrichment entry.
type Enricher struct {
	searcher Searcher
	chat     llm.ChatClient
	config   EnrichConfig
	log      *logger.Logger
}

// NewEnricher creates an enricher with the given bounds
func NewEnricher(searcher Searcher, chat llm.ChatClient, config EnrichConfig, log *logger.Logger) *Enricher {
	config.normalize()
	return &Enricher{searcher: searcher, chat: chat, config: config, log: log}
}

// Enrich mutates the feature lists of up to TopK competitors in place and
// returns the same slice. The onSettle callback fires once per settled
// competitor for progress ticks.
func (e *Enricher) Enrich(ctx context.Context, req *types.AnalysisRequest, competitors []types.Competitor, onSettle func(done, total int)) []types.Competitor {
	if !e.config.Enabled || len(competitors) == 0 {
		return competitors
	}

	limit := e.config.TopK
	if limit > len(competitors) {
		limit = len(competitors)
	}

	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0

	for i := 0; i < limit; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() == nil {
				e.enrichOne(ctx, req, &competitors[i])
			}

			if onSettle != nil {
				mu.Lock()
				settled++
				onSettle(settled, limit)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	return competitors
}

func (e *Enricher) enrichOne(ctx context.Context, req *types.AnalysisRequest, competitor *types.Competitor) {
	query := strings.TrimSpace(fmt.Sprintf("%s %s features capabilities", competitor.Name, req.Domain))

	searchCtx, cancel := context.WithTimeout(ctx, e.config.SearchTimeout)
	defer cancel()

	resp, err := e.searcher.Search(searchCtx, &wstypes.SearchRequest{
		Query:      query,
		MaxResults: e.config.ResultsPerCompetitor,
	})
	if err != nil || len(resp.Results) == 0 {
		e.log.Warn("enrichment search failed",
			zap.String("competitor", competitor.Name),
			zap.Error(err))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Product: %s\n\nSearch snippets:\n", competitor.Name)
	for i, res := range resp.Results {
		fmt.Fprintf(&sb, "%d. %s\n%s\n\n", i+1, res.Title, res.Snippet)
	}
	sb.WriteString("List this product's features.")

	raw, err := e.chat.Complete(ctx, enricherSystemPrompt, sb.String())
	if err != nil {
		e.log.Warn("enrichment extraction failed",
			zap.String("competitor", competitor.Name),
			zap.Error(err))
		return
	}

	parsed := gjson.Get(llm.StripFences(raw), "features")
	if !parsed.IsArray() {
		e.log.Warn("enrichment response has no features array",
			zap.String("competitor", competitor.Name))
		return
	}

	seen := make(map[string]struct{}, len(competitor.Features))
	for _, f := range competitor.Features {
		seen[strings.ToLower(f)] = struct{}{}
	}
	for _, item := range parsed.Array() {
		f := strings.TrimSpace(item.String())
		if f == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(f)]; dup {
			continue
		}
		seen[strings.ToLower(f)] = struct{}{}
		competitor.Features = append(competitor.Features, f)
	}
}

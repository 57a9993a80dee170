package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/llm"
	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/types"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/errors"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const extractorSystemPrompt = `You are a competitive analysis assistant. From the provided search results and page excerpts, identify competing products. Respond with JSON only, in this exact shape:
{"competitors": [{"name": "...", "features": ["..."], "score": 1, "reason": "..."}]}
Score each competitor 1-10 by relevance: 9-10 highly relevant, 7-8 moderately relevant, 5-6 weakly relevant, 1-4 tangential. Do not invent products not supported by the material.`

// Extractor turns search results and page content into competitor candidates
type Extractor struct {
	chat llm.ChatClient
	log  *logger.Logger
}

// NewExtractor creates an extractor backed by the given chat client
func NewExtractor(chat llm.ChatClient, log *logger.Logger) *Extractor {
	return &Extractor{chat: chat, log: log}
}

// Extract makes one model call per query over that query's pooled context.
// A query whose call fails contributes nothing and is logged as a warning;
// only total failure across all queries is fatal. The onSettle callback
// fires once per settled query for progress ticks.
func (e *Extractor) Extract(ctx context.Context, req *types.AnalysisRequest, outcomes []queryOutcome, pages map[string]*types.PageContent, onSettle func(done, total int)) ([]types.Candidate, error) {
	var candidates []types.Candidate
	succeeded := 0
	attempted := 0
	var lastErr error

	for i, outcome := range outcomes {
		if outcome.Err != nil || len(outcome.Results) == 0 {
			if onSettle != nil {
				onSettle(i+1, len(outcomes))
			}
			continue
		}
		attempted++

		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrAnalysisCanceled)
		}

		queryCandidates, err := e.extractQuery(ctx, req, outcome, pages)
		if err != nil {
			lastErr = err
			e.log.Warn("extraction failed for query",
				zap.String("query", outcome.Query),
				zap.Error(err))
		} else {
			succeeded++
			candidates = append(candidates, queryCandidates...)
		}

		if onSettle != nil {
			onSettle(i+1, len(outcomes))
		}
	}

	if attempted > 0 && succeeded == 0 {
		return nil, errors.Wrap(lastErr, errors.ErrAnalysisExtractionFailed)
	}
	return candidates, nil
}

func (e *Extractor) extractQuery(ctx context.Context, req *types.AnalysisRequest, outcome queryOutcome, pages map[string]*types.PageContent) ([]types.Candidate, error) {
	prompt := e.buildPrompt(req, outcome, pages)

	raw, err := e.chat.Complete(ctx, extractorSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return ParseCandidates(raw, outcome.Query)
}

func (e *Extractor) buildPrompt(req *types.AnalysisRequest, outcome queryOutcome, pages map[string]*types.PageContent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Our product: %s\n", req.ProductName)
	if req.Domain != "" {
		fmt.Fprintf(&sb, "Domain: %s\n", req.Domain)
	}
	if req.Features != "" {
		fmt.Fprintf(&sb, "Our features: %s\n", req.Features)
	}
	fmt.Fprintf(&sb, "Search query: %s\n\nSearch results:\n", outcome.Query)

	for i, res := range outcome.Results {
		fmt.Fprintf(&sb, "%d. %s\nURL: %s\nSnippet: %s\n", i+1, res.Title, res.URL, res.Snippet)
		if page, ok := pages[res.URL]; ok && page.Text != "" {
			fmt.Fprintf(&sb, "Page excerpt: %s\n", page.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Identify the competing products described above.")
	return sb.String()
}

// ParseCandidates parses a model response into candidates, tolerating code
// fences and clamping out-of-band scores. Entries without a name are dropped.
// A response with no competitors array at all is an error; an empty array is
// a valid zero-candidate result.
func ParseCandidates(raw, sourceQuery string) ([]types.Candidate, error) {
	parsed := gjson.Get(llm.StripFences(raw), "competitors")
	if !parsed.IsArray() {
		return nil, fmt.Errorf("response has no competitors array: %q", truncate(raw, 200))
	}

	var candidates []types.Candidate
	for _, item := range parsed.Array() {
		name := strings.TrimSpace(item.Get("name").String())
		if name == "" {
			continue
		}

		var features []string
		for _, f := range item.Get("features").Array() {
			if v := strings.TrimSpace(f.String()); v != "" {
				features = append(features, v)
			}
		}

		candidates = append(candidates, types.Candidate{
			Name:        name,
			Features:    features,
			Score:       types.ClampScore(int(item.Get("score").Int())),
			Reason:      item.Get("reason").String(),
			SourceQuery: sourceQuery,
		})
	}
	return candidates, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

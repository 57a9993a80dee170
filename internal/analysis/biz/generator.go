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

const generatorSystemPrompt = `You are a market research assistant. Given a product domain and/or a feature description, produce short web search queries that would surface competing products. Respond with a JSON array of strings only, no commentary.`

// QueryGenerator turns an analysis request into a bounded set of search queries
type QueryGenerator struct {
	chat       llm.ChatClient
	maxQueries int
	log        *logger.Logger
}

// NewQueryGenerator creates a generator capped at maxQueries
func NewQueryGenerator(chat llm.ChatClient, maxQueries int, log *logger.Logger) *QueryGenerator {
	if maxQueries <= 0 {
		maxQueries = 5
	}
	return &QueryGenerator{chat: chat, maxQueries: maxQueries, log: log}
}

// Generate produces 1..maxQueries search queries for the request. An LLM
// failure falls back to a single heuristic query built from the request, so
// a validated request always yields at least one query.
func (g *QueryGenerator) Generate(ctx context.Context, req *types.AnalysisRequest) ([]string, error) {
	queries, err := g.generateWithLLM(ctx, req)
	if err != nil {
		g.log.Warn("query generation via llm failed, using fallback query", zap.Error(err))
	}
	if len(queries) == 0 {
		queries = g.fallbackQueries(req)
	}
	if len(queries) == 0 {
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrAnalysisGenerationFailed)
		}
		return nil, errors.New(errors.ErrAnalysisGenerationFailed, "no usable queries generated")
	}
	if len(queries) > g.maxQueries {
		queries = queries[:g.maxQueries]
	}
	return queries, nil
}

func (g *QueryGenerator) generateWithLLM(ctx context.Context, req *types.AnalysisRequest) ([]string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product name: %s\n", req.ProductName)
	if req.Domain != "" {
		fmt.Fprintf(&sb, "Domain: %s\n", req.Domain)
	}
	if req.Features != "" {
		fmt.Fprintf(&sb, "Feature description: %s\n", req.Features)
	}
	fmt.Fprintf(&sb, "Generate up to %d distinct search queries for finding competitors. ", g.maxQueries)
	if req.Domain != "" && req.Features == "" {
		sb.WriteString("Focus the queries on the product domain.")
	} else if req.Features != "" && req.Domain == "" {
		sb.WriteString("Decompose the feature description into distinct functional aspects and write one query per aspect.")
	} else {
		sb.WriteString("Combine the domain with the main functional aspects.")
	}

	raw, err := g.chat.Complete(ctx, generatorSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	parsed := gjson.Parse(llm.StripFences(raw))
	if !parsed.IsArray() {
		// some models wrap the array in an object
		parsed = parsed.Get("queries")
	}
	if !parsed.IsArray() {
		return nil, fmt.Errorf("unparsable query list: %q", raw)
	}

	seen := make(map[string]struct{})
	var queries []string
	for _, item := range parsed.Array() {
		q := strings.TrimSpace(item.String())
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
	}
	return queries, nil
}

// fallbackQueries builds a heuristic query when the model is unavailable
// or returns nothing usable.
func (g *QueryGenerator) fallbackQueries(req *types.AnalysisRequest) []string {
	subject := strings.TrimSpace(req.Domain)
	if subject == "" {
		subject = strings.TrimSpace(req.Features)
	}
	if subject == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s competitors alternatives", subject)}
}

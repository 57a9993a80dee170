package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/llm"
	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/types"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/errors"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"

	"go.uber.org/zap"
)

// Config bounds one analysis run
type Config struct {
	MaxQueries      int           `mapstructure:"max_queries"`
	ResultsPerQuery int           `mapstructure:"results_per_query"`
	SearchTimeout   time.Duration `mapstructure:"search_timeout"`
	Reader          ReaderConfig  `mapstructure:",squash"`
	Enrich          EnrichConfig  `mapstructure:"enrich"`
}

// Normalize fills zero values with defaults
func (c *Config) Normalize() {
	if c.MaxQueries <= 0 {
		c.MaxQueries = 5
	}
	if c.ResultsPerQuery <= 0 {
		c.ResultsPerQuery = 5
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 15 * time.Second
	}
	c.Reader.normalize()
	c.Enrich.normalize()
}

// EmitFunc receives progress events from a running pipeline
type EmitFunc func(types.ProgressEvent)

// Pipeline sequences the analysis stages and owns their fan-out.
// One Pipeline is safe for concurrent use; each Run owns its own
// intermediate state.
type Pipeline struct {
	generator *QueryGenerator
	executor  *SearchExecutor
	reader    *PageReader
	extractor *Extractor
	enricher  *Enricher
	log       *logger.Logger
}

// NewPipeline wires the stages from a searcher, a chat client and config
func NewPipeline(searcher Searcher, chat llm.ChatClient, config Config, log *logger.Logger) *Pipeline {
	config.Normalize()
	return &Pipeline{
		generator: NewQueryGenerator(chat, config.MaxQueries, log.Named("generator")),
		executor:  NewSearchExecutor(searcher, config.ResultsPerQuery, config.SearchTimeout, log.Named("executor")),
		reader:    NewPageReader(config.Reader, log.Named("reader")),
		extractor: NewExtractor(chat, log.Named("extractor")),
		enricher:  NewEnricher(searcher, chat, config.Enrich, log.Named("enricher")),
		log:       log,
	}
}

// progressEmitter enforces monotone non-decreasing progress
type progressEmitter struct {
	emit EmitFunc
	last int
}

func (p *progressEmitter) send(stage types.Stage, progress int, detail string) {
	if progress < p.last {
		progress = p.last
	}
	p.last = progress
	if p.emit != nil {
		p.emit(types.ProgressEvent{Stage: stage, Progress: progress, Detail: detail})
	}
}

// scale maps done/total onto the [lo, hi] progress band
func scale(lo, hi, done, total int) int {
	if total <= 0 {
		return hi
	}
	return lo + (hi-lo)*done/total
}

// Run executes the full pipeline for one request. emit may be nil for the
// synchronous path. Cancellation of ctx aborts between stages and inside
// every in-flight network call.
func (p *Pipeline) Run(ctx context.Context, req *types.AnalysisRequest, emit EmitFunc) (*types.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	prog := &progressEmitter{emit: emit}
	prog.send(types.StageInit, 0, "analysis started")

	// query generation
	queries, err := p.generator.Generate(ctx, req)
	if err != nil {
		return nil, p.fail(ctx, err)
	}
	prog.send(types.StageQuery, 10, fmt.Sprintf("generated %d search queries", len(queries)))

	// concurrent search
	prog.send(types.StageSearch, 15, "searching")
	outcomes, err := p.executor.Execute(ctx, queries, func(done, total int) {
		prog.send(types.StageSearch, scale(15, 40, done, total),
			fmt.Sprintf("searched %d/%d queries", done, total))
	})
	if err != nil {
		return nil, p.fail(ctx, err)
	}

	// bounded content fetch; failures are already folded into page entries
	prog.send(types.StageRead, 40, "fetching page content")
	pages := p.reader.ReadAll(ctx, outcomes)
	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, err)
	}
	prog.send(types.StageRead, 55, fmt.Sprintf("fetched %d pages", len(pages)))

	// extraction
	candidates, err := p.extractor.Extract(ctx, req, outcomes, pages, func(done, total int) {
		prog.send(types.StageExtract, scale(55, 75, done, total),
			fmt.Sprintf("extracted %d/%d queries", done, total))
	})
	if err != nil {
		return nil, p.fail(ctx, err)
	}

	// merge
	competitors := Merge(candidates)
	prog.send(types.StageMerge, 80, fmt.Sprintf("merged into %d competitors", len(competitors)))

	// optional enrichment
	competitors = p.enricher.Enrich(ctx, req, competitors, func(done, total int) {
		prog.send(types.StageEnrich, scale(80, 95, done, total),
			fmt.Sprintf("enriched %d/%d competitors", done, total))
	})
	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, err)
	}

	result := &types.AnalysisResult{
		Domain:      req.Domain,
		Features:    req.Features,
		ProductName: req.ProductName,
		Queries:     queries,
		Competitors: competitors,
		TotalCount:  len(competitors),
		Message:     resultMessage(len(competitors)),
	}

	p.log.Info("analysis complete",
		zap.String("product", req.ProductName),
		zap.Int("queries", len(queries)),
		zap.Int("competitors", result.TotalCount),
		zap.Duration("took", time.Since(start)))

	prog.send(types.StageComplete, 100, result.Message)
	return result, nil
}

// fail maps context cancellation onto the cancellation error code so a
// client disconnect is distinguishable from a stage failure.
func (p *Pipeline) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, errors.ErrAnalysisCanceled) {
		return errors.Wrap(ctxErr, errors.ErrAnalysisCanceled)
	}
	return err
}

func resultMessage(count int) string {
	if count == 0 {
		return "analysis finished, no competitors found"
	}
	return fmt.Sprintf("analysis finished, discovered %d competitors", count)
}

package biz

import (
	"context"
	"sync"
	"time"

	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/errors"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"
	wstypes "github.com/lk2023060901/competitor-scout-backend/internal/websearch/types"

	"go.uber.org/zap"
)

// Searcher is the search provider interface the pipeline depends on.
// Implemented by internal/websearch/provider.Provider.
type Searcher interface {
	Search(ctx context.Context, req *wstypes.SearchRequest) (*wstypes.SearchResponse, error)
}

// queryOutcome is the per-query success/failure wrapper collected at the
// search stage barrier. A failed query carries Err and no results.
type queryOutcome struct {
	Query   string
	Results []*wstypes.SearchResult
	Err     error
}

// SearchExecutor fans queries out to the search provider concurrently
type SearchExecutor struct {
	searcher   Searcher
	maxResults int
	timeout    time.Duration
	log        *logger.Logger
}

// NewSearchExecutor creates an executor returning up to maxResults per query
func NewSearchExecutor(searcher Searcher, maxResults int, timeout time.Duration, log *logger.Logger) *SearchExecutor {
	if maxResults <= 0 {
		maxResults = 5
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SearchExecutor{searcher: searcher, maxResults: maxResults, timeout: timeout, log: log}
}

// Execute runs every query concurrently and waits for all of them to settle.
// Individual query failures are recorded as warnings; only total failure is
// fatal. The onSettle callback fires once per settled query for progress ticks.
func (e *SearchExecutor) Execute(ctx context.Context, queries []string, onSettle func(done, total int)) ([]queryOutcome, error) {
	outcomes := make([]queryOutcome, len(queries))

	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0

	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()

			searchCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			resp, err := e.searcher.Search(searchCtx, &wstypes.SearchRequest{
				Query:      query,
				MaxResults: e.maxResults,
			})
			if err != nil {
				outcomes[i] = queryOutcome{Query: query, Err: err}
			} else {
				outcomes[i] = queryOutcome{Query: query, Results: resp.Results}
			}

			if onSettle != nil {
				mu.Lock()
				settled++
				onSettle(settled, len(queries))
				mu.Unlock()
			}
		}(i, query)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrAnalysisCanceled)
	}

	failed := 0
	var lastErr error
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			lastErr = o.Err
			e.log.Warn("search query failed",
				zap.String("query", o.Query),
				zap.Error(o.Err))
		}
	}

	if failed == len(outcomes) {
		return nil, errors.Wrap(lastErr, errors.ErrAnalysisSearchFailed)
	}
	return outcomes, nil
}

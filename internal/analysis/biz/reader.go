package biz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/types"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"

	readability "github.com/go-shiori/go-readability"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ReaderConfig bounds the content fetch stage
type ReaderConfig struct {
	Concurrency  int           `mapstructure:"fetch_concurrency"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxPageBytes int64         `mapstructure:"max_page_bytes"`
	MaxPageChars int           `mapstructure:"max_page_chars"`
}

func (c *ReaderConfig) normalize() {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.MaxPageBytes <= 0 {
		c.MaxPageBytes = 2 << 20 // 2 MiB
	}
	if c.MaxPageChars <= 0 {
		c.MaxPageChars = 4000
	}
}

// PageReader fetches result URLs and extracts readable text.
// Per-URL failures are swallowed into PageContent.FetchErr.
type PageReader struct {
	config ReaderConfig
	client *http.Client
	log    *logger.Logger
}

// NewPageReader creates a reader with the given bounds
func NewPageReader(config ReaderConfig, log *logger.Logger) *PageReader {
	config.normalize()
	return &PageReader{
		config: config,
		client: &http.Client{Timeout: config.FetchTimeout},
		log:    log,
	}
}

// ReadAll fetches every distinct URL in the outcomes through a bounded
// worker pool and returns page content keyed by URL. Duplicate URLs across
// queries are fetched once.
func (r *PageReader) ReadAll(ctx context.Context, outcomes []queryOutcome) map[string]*types.PageContent {
	seen := make(map[string]struct{})
	var urls []string
	for _, o := range outcomes {
		for _, res := range o.Results {
			if res.URL == "" {
				continue
			}
			if _, dup := seen[res.URL]; dup {
				continue
			}
			seen[res.URL] = struct{}{}
			urls = append(urls, res.URL)
		}
	}

	pages := make(map[string]*types.PageContent, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	pool, err := ants.NewPool(r.config.Concurrency)
	if err != nil {
		r.log.Warn("fetch pool creation failed, skipping content fetch", zap.Error(err))
		return pages
	}
	defer pool.Release()

	for _, pageURL := range urls {
		pageURL := pageURL
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			page := r.fetch(ctx, pageURL)
			mu.Lock()
			pages[pageURL] = page
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			pages[pageURL] = &types.PageContent{URL: pageURL, FetchErr: submitErr.Error()}
			mu.Unlock()
		}
	}
	wg.Wait()

	return pages
}

// fetch retrieves one URL and extracts readable text. Every failure mode
// maps to a PageContent with FetchErr set.
func (r *PageReader) fetch(ctx context.Context, pageURL string) *types.PageContent {
	page := &types.PageContent{URL: pageURL}

	fail := func(err error) *types.PageContent {
		page.FetchErr = err.Error()
		r.log.Debug("page fetch failed",
			zap.String("url", pageURL),
			zap.Error(err))
		return page
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return fail(err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("User-Agent", "Competitor-Scout/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body := io.LimitReader(resp.Body, r.config.MaxPageBytes)
	article, err := readability.FromReader(body, parsed)
	if err != nil {
		return fail(err)
	}

	text := strings.TrimSpace(article.TextContent)
	page.Text = truncateRunes(text, r.config.MaxPageChars)
	return page
}

// truncateRunes caps text at n runes without splitting a multi-byte
// character mid-sequence.
func truncateRunes(text string, n int) string {
	if len(text) <= n {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

package biz

import (
	"context"
	"fmt"
	"strings"
	"sync"

	wstypes "github.com/lk2023060901/competitor-scout-backend/internal/websearch/types"
)

// mockSearcher returns canned responses keyed by query substring, or errors
type mockSearcher struct {
	mu        sync.Mutex
	responses map[string]*wstypes.SearchResponse
	errors    map[string]error
	calls     []string
}

func newMockSearcher() *mockSearcher {
	return &mockSearcher{
		responses: make(map[string]*wstypes.SearchResponse),
		errors:    make(map[string]error),
	}
}

func (m *mockSearcher) Search(ctx context.Context, req *wstypes.SearchRequest) (*wstypes.SearchResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.Query)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for key, err := range m.errors {
		if strings.Contains(req.Query, key) {
			return nil, err
		}
	}
	for key, resp := range m.responses {
		if strings.Contains(req.Query, key) {
			return resp, nil
		}
	}
	return &wstypes.SearchResponse{Query: req.Query, Results: []*wstypes.SearchResult{}}, nil
}

func searchResults(urls ...string) *wstypes.SearchResponse {
	results := make([]*wstypes.SearchResult, len(urls))
	for i, u := range urls {
		results[i] = &wstypes.SearchResult{
			Title:   fmt.Sprintf("Result %d", i+1),
			URL:     u,
			Snippet: fmt.Sprintf("snippet for %s", u),
		}
	}
	return &wstypes.SearchResponse{Results: results, TotalCount: len(results)}
}

// mockChat returns canned completions matched by a substring of the user
// prompt, falling back to a default response
type mockChat struct {
	mu        sync.Mutex
	responses map[string]string
	fallback  string
	err       error
	calls     []string
}

func newMockChat() *mockChat {
	return &mockChat{responses: make(map[string]string)}
}

func (m *mockChat) Complete(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, user)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.err != nil {
		return "", m.err
	}
	for key, resp := range m.responses {
		if strings.Contains(user, key) {
			return resp, nil
		}
	}
	return m.fallback, nil
}

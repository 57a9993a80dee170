package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/biz"
	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/types"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/sse"
	wstypes "github.com/lk2023060901/competitor-scout-backend/internal/websearch/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct{}

func (stubSearcher) Search(ctx context.Context, req *wstypes.SearchRequest) (*wstypes.SearchResponse, error) {
	return &wstypes.SearchResponse{
		Query: req.Query,
		Results: []*wstypes.SearchResult{
			{Title: "Competitor roundup", URL: "http://127.0.0.1:1/page", Snippet: "TutorBot offers lessons"},
		},
		TotalCount: 1,
	}, nil
}

type stubChat struct{}

func (stubChat) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.Contains(user, "Generate up to") {
		return `["AI tutoring software"]`, nil
	}
	return `{"competitors": [{"name": "TutorBot", "features": ["lessons"], "score": 9, "reason": "direct"}]}`, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pipeline := biz.NewPipeline(stubSearcher{}, stubChat{}, biz.Config{
		MaxQueries:      3,
		ResultsPerQuery: 3,
		SearchTimeout:   time.Second,
		Reader: biz.ReaderConfig{
			Concurrency:  2,
			FetchTimeout: time.Second,
		},
	}, logger.Nop())

	svc := NewAnalysisService(pipeline, sse.NewHub(), logger.Nop())

	router := gin.New()
	svc.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestAnalyze_Sync(t *testing.T) {
	router := newTestRouter(t)

	body := `{"domain": "AI education", "product_name": "MyTutor"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Code int                  `json:"code"`
		Data types.AnalysisResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 0, envelope.Code)
	assert.Equal(t, "MyTutor", envelope.Data.ProductName)
	require.Equal(t, 1, envelope.Data.TotalCount)
	assert.Equal(t, "TutorBot", envelope.Data.Competitors[0].Name)
}

func TestAnalyze_ValidationError(t *testing.T) {
	router := newTestRouter(t)

	body := `{"product_name": "MyTutor"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeStream(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/stream?domain=AI+education&product_name=MyTutor", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, "event: result")
	assert.Contains(t, body, `"stage":"complete"`)
	assert.Contains(t, body, "TutorBot")
}

func TestAnalyzeStream_ValidationError(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/stream?product_name=MyTutor", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

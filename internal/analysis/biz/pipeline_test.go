package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/types"
	apperrors "github.com/lk2023060901/competitor-scout-backend/internal/pkg/errors"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// test URLs point at a closed local port so fetches fail fast and exercise
// the swallow-and-continue path without touching the network
func testConfig() Config {
	return Config{
		MaxQueries:      5,
		ResultsPerQuery: 3,
		SearchTimeout:   time.Second,
		Reader: ReaderConfig{
			Concurrency:  2,
			FetchTimeout: time.Second,
			MaxPageBytes: 1 << 20,
			MaxPageChars: 1000,
		},
	}
}

func newTestPipeline(searcher *mockSearcher, chat *mockChat) *Pipeline {
	return NewPipeline(searcher, chat, testConfig(), logger.Nop())
}

func TestPipeline_HappyPath(t *testing.T) {
	searcher := newMockSearcher()
	searcher.responses["tutoring"] = searchResults("http://127.0.0.1:1/a")
	searcher.responses["grading"] = searchResults("http://127.0.0.1:1/b")

	chat := newMockChat()
	chat.responses["Generate up to"] = `["AI tutoring software", "AI grading tools"]`
	chat.responses["Search query: AI tutoring software"] = `{"competitors": [{"name": "TutorBot", "features": ["lessons"], "score": 9, "reason": "direct"}]}`
	chat.responses["Search query: AI grading tools"] = `{"competitors": [{"name": "GradeAI", "features": ["grading"], "score": 6, "reason": "partial"}, {"name": "tutorbot", "features": ["quizzes"], "score": 7, "reason": "dup"}]}`

	pipeline := newTestPipeline(searcher, chat)

	var events []types.ProgressEvent
	req := &types.AnalysisRequest{Domain: "AI education", ProductName: "MyTutor"}
	result, err := pipeline.Run(context.Background(), req, func(e types.ProgressEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{"AI tutoring software", "AI grading tools"}, result.Queries)
	require.Equal(t, 2, result.TotalCount)
	require.Len(t, result.Competitors, 2)

	// merged across queries, sorted by score
	assert.Equal(t, "TutorBot", result.Competitors[0].Name)
	assert.Equal(t, 9, result.Competitors[0].Score)
	assert.ElementsMatch(t, []string{"lessons", "quizzes"}, result.Competitors[0].Features)
	assert.Equal(t, "GradeAI", result.Competitors[1].Name)

	assert.Contains(t, result.Message, "2 competitors")

	// progress is monotone and terminates with complete=100
	require.NotEmpty(t, events)
	last := 0
	for _, e := range events {
		assert.GreaterOrEqual(t, e.Progress, last)
		last = e.Progress
	}
	final := events[len(events)-1]
	assert.Equal(t, types.StageComplete, final.Stage)
	assert.Equal(t, 100, final.Progress)
}

func TestPipeline_ValidationRejectedBeforeStages(t *testing.T) {
	searcher := newMockSearcher()
	chat := newMockChat()
	pipeline := newTestPipeline(searcher, chat)

	req := &types.AnalysisRequest{ProductName: "MyTutor"}
	_, err := pipeline.Run(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrAnalysisInvalidInput))
	assert.Empty(t, chat.calls)
	assert.Empty(t, searcher.calls)
}

func TestPipeline_PartialSearchFailure(t *testing.T) {
	searcher := newMockSearcher()
	searcher.errors["one"] = errors.New("provider down")
	searcher.errors["two"] = errors.New("provider down")
	searcher.responses["three"] = searchResults("http://127.0.0.1:1/c")

	chat := newMockChat()
	chat.responses["Generate up to"] = `["query one", "query two", "query three"]`
	chat.responses["Search query: query three"] = `{"competitors": [{"name": "Survivor", "score": 8, "reason": "found"}]}`

	pipeline := newTestPipeline(searcher, chat)

	req := &types.AnalysisRequest{Domain: "testing", ProductName: "Probe"}
	result, err := pipeline.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCount)
	assert.Equal(t, "Survivor", result.Competitors[0].Name)
}

func TestPipeline_TotalSearchFailure(t *testing.T) {
	searcher := newMockSearcher()
	searcher.errors["query"] = errors.New("provider down")

	chat := newMockChat()
	chat.responses["Generate up to"] = `["query one", "query two"]`

	pipeline := newTestPipeline(searcher, chat)

	var events []types.ProgressEvent
	req := &types.AnalysisRequest{Domain: "testing", ProductName: "Probe"}
	result, err := pipeline.Run(context.Background(), req, func(e types.ProgressEvent) {
		events = append(events, e)
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.Is(err, apperrors.ErrAnalysisSearchFailed))

	// no complete event was emitted
	for _, e := range events {
		assert.NotEqual(t, types.StageComplete, e.Stage)
	}
}

func TestPipeline_ZeroCompetitorsIsSuccess(t *testing.T) {
	searcher := newMockSearcher()
	searcher.responses["query"] = searchResults("http://127.0.0.1:1/d")

	chat := newMockChat()
	chat.responses["Generate up to"] = `["query one"]`
	chat.responses["Search query:"] = `{"competitors": []}`

	pipeline := newTestPipeline(searcher, chat)

	req := &types.AnalysisRequest{Domain: "niche", ProductName: "Probe"}
	result, err := pipeline.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalCount)
	assert.Empty(t, result.Competitors)
	assert.Contains(t, result.Message, "no competitors")
}

func TestPipeline_Cancellation(t *testing.T) {
	searcher := newMockSearcher()
	chat := newMockChat()
	chat.responses["Generate up to"] = `["query one"]`

	pipeline := newTestPipeline(searcher, chat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := &types.AnalysisRequest{Domain: "testing", ProductName: "Probe"}
	result, err := pipeline.Run(ctx, req, nil)
	require.Error(t, err)
	assert.Nil(t, result)
}

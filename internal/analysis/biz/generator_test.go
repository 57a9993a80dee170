package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/types"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryGenerator_ParsesArray(t *testing.T) {
	chat := newMockChat()
	chat.fallback = `["AI education platforms", "AI tutoring software", "AI grading tools"]`

	gen := NewQueryGenerator(chat, 5, logger.Nop())
	req := &types.AnalysisRequest{Domain: "AI education", ProductName: "MyTutor"}

	queries, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"AI education platforms",
		"AI tutoring software",
		"AI grading tools",
	}, queries)
}

func TestQueryGenerator_ParsesWrappedObject(t *testing.T) {
	chat := newMockChat()
	chat.fallback = `{"queries": ["a", "b"]}`

	gen := NewQueryGenerator(chat, 5, logger.Nop())
	req := &types.AnalysisRequest{Domain: "AI education", ProductName: "MyTutor"}

	queries, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, queries)
}

func TestQueryGenerator_CapsAtMax(t *testing.T) {
	chat := newMockChat()
	chat.fallback = `["q1", "q2", "q3", "q4", "q5", "q6", "q7"]`

	gen := NewQueryGenerator(chat, 3, logger.Nop())
	req := &types.AnalysisRequest{Domain: "AI education", ProductName: "MyTutor"}

	queries, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, queries, 3)
}

func TestQueryGenerator_DedupsAndTrims(t *testing.T) {
	chat := newMockChat()
	chat.fallback = `["  AI tutors ", "ai tutors", "", "grading tools"]`

	gen := NewQueryGenerator(chat, 5, logger.Nop())
	req := &types.AnalysisRequest{Domain: "AI education", ProductName: "MyTutor"}

	queries, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"AI tutors", "grading tools"}, queries)
}

func TestQueryGenerator_FallbackOnError(t *testing.T) {
	chat := newMockChat()
	chat.err = errors.New("model unavailable")

	gen := NewQueryGenerator(chat, 5, logger.Nop())
	req := &types.AnalysisRequest{Domain: "AI education", ProductName: "MyTutor"}

	queries, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0], "AI education")
}

func TestQueryGenerator_FallbackOnGarbage(t *testing.T) {
	chat := newMockChat()
	chat.fallback = "sure, here are some ideas for you"

	gen := NewQueryGenerator(chat, 5, logger.Nop())
	req := &types.AnalysisRequest{Features: "automated grading", ProductName: "MyTutor"}

	queries, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0], "automated grading")
}

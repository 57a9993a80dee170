package types

import (
	"strings"

	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/errors"
)

// Stage identifies one phase of the analysis pipeline
type Stage string

const (
	StageInit     Stage = "init"
	StageQuery    Stage = "query"
	StageSearch   Stage = "search"
	StageRead     Stage = "read"
	StageExtract  Stage = "extract"
	StageMerge    Stage = "merge"
	StageEnrich   Stage = "enrich"
	StageComplete Stage = "complete"
	StageError    Stage = "error"
)

// ProgressEvent reports pipeline progress to an observer.
// Progress is 0..100 and never decreases within one analysis.
type ProgressEvent struct {
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Detail   string `json:"detail"`
}

// AnalysisRequest is the input for one competitor analysis
type AnalysisRequest struct {
	Domain      string `json:"domain" form:"domain"`
	Features    string `json:"features" form:"features"`
	ProductName string `json:"product_name" form:"product_name"`
}

// Validate checks the request invariants before the pipeline starts
func (r *AnalysisRequest) Validate() error {
	if strings.TrimSpace(r.ProductName) == "" {
		return errors.NewValidationError("product_name is required")
	}
	if strings.TrimSpace(r.Domain) == "" && strings.TrimSpace(r.Features) == "" {
		return errors.NewValidationError("at least one of domain or features is required")
	}
	return nil
}

// PageContent is the outcome of fetching one URL.
// A failed fetch sets FetchErr and leaves Text empty; it never aborts the run.
type PageContent struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	FetchErr string `json:"fetch_err,omitempty"`
}

// Candidate is one unmerged competitor record produced by an extraction call.
// The same real-world product may appear as multiple candidates across queries.
type Candidate struct {
	Name        string   `json:"name"`
	Features    []string `json:"features"`
	Score       int      `json:"score"`
	Reason      string   `json:"reason"`
	SourceQuery string   `json:"source_query,omitempty"`
}

// Competitor is a merged, deduplicated competitor entry
type Competitor struct {
	Name     string   `json:"name"`
	Features []string `json:"features"`
	Score    int      `json:"score"`
	Reason   string   `json:"reason"`
}

// AnalysisResult is the final output of one analysis run
type AnalysisResult struct {
	Domain      string       `json:"domain,omitempty"`
	Features    string       `json:"features,omitempty"`
	ProductName string       `json:"product_name"`
	Queries     []string     `json:"queries"`
	Competitors []Competitor `json:"competitors"`
	TotalCount  int          `json:"total_count"`
	Message     string       `json:"message"`
}

// ClampScore coerces a raw score into the 1..10 band instead of rejecting it
func ClampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// CanonicalName is the merge identity key: lower-cased with collapsed whitespace
func CanonicalName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

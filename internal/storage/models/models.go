package models

import (
	"strings"
	"time"
)

// SystemUnknown is the label used whenever a case's target system
// could not be determined, by the classifier or by the extractor.
const SystemUnknown = "Unknown"

// Rating bounds for feedback. Ratings arrive on a 1-5 ordinal scale and
// are normalized to 0-1 before they touch the ranker.
const (
	RatingMin = 1
	RatingMax = 5
)

// Case is a stored problem/solution record. It doubles as training data
// for the models and as a retrievable suggestion.
type Case struct {
	ID                 int64     `json:"id"`
	ProblemDescription string    `json:"problem_description"`
	Solution           string    `json:"solution"`
	SystemType         string    `json:"system_type"`
	Tags               []string  `json:"tags"`
	CreatedAt          time.Time `json:"created_at"`
	// EffectivenessScore is the normalized (0-1) running average of all
	// feedback ratings, nil until the first rating arrives.
	EffectivenessScore *float64 `json:"effectiveness_score"`
	FeedbackCount      int      `json:"feedback_count"`
}

// TagsString joins tags for the comma-separated storage column.
func (c *Case) TagsString() string {
	return strings.Join(c.Tags, ",")
}

// SetTagsString splits the storage column back into the tag list.
func (c *Case) SetTagsString(s string) {
	c.Tags = c.Tags[:0]
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			c.Tags = append(c.Tags, t)
		}
	}
}

// CaseFeedback is an immutable rating of a case's solution.
type CaseFeedback struct {
	ID               int64     `json:"id"`
	CaseID           int64     `json:"case_id"`
	Rating           int       `json:"rating"` // 1-5 ordinal scale
	ResolutionMethod string    `json:"resolution_method"`
	CustomSolution   string    `json:"custom_solution"`
	CreatedAt        time.Time `json:"created_at"`
}

// NormalizedRating maps the ordinal 1-5 rating onto the canonical 0-1
// effectiveness scale.
func (f *CaseFeedback) NormalizedRating() float64 {
	return float64(f.Rating-RatingMin) / float64(RatingMax-RatingMin)
}

// ValidRating reports whether a rating lies in the fixed ordinal set.
func ValidRating(rating int) bool {
	return rating >= RatingMin && rating <= RatingMax
}

// SolutionSuggestion is an ephemeral per-query candidate. It is never
// persisted and is recomputed on every suggest call.
type SolutionSuggestion struct {
	CaseID             int64     `json:"case_id"`
	ProblemDescription string    `json:"problem_description"`
	Solution           string    `json:"solution"`
	SystemType         string    `json:"system_type"`
	CreatedAt          time.Time `json:"created_at"`
	Similarity         float64   `json:"similarity"`
	Confidence         float64   `json:"confidence"`
	Rank               int       `json:"rank"`
}

// DraftCase is what the pattern extractor assembles from raw document
// text. The caller persists it through the normal case-creation path.
type DraftCase struct {
	ProblemDescription string
	Solution           string
	SystemType         string
	ProblemCategory    string
	Entities           map[string]string
}

// SolutionStep is one displayable step of a formatted solution.
type SolutionStep struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// SuggestionRecord logs one served suggest call for observability.
type SuggestionRecord struct {
	ID              string
	ProblemText     string
	PredictedSystem string
	Confidence      float64
	ResultCount     int
	LatencyMS       int
	CreatedAt       time.Time
}

// LearningStats is the observability summary exposed by the learning loop.
type LearningStats struct {
	TotalCases        int                `json:"total_cases"`
	TotalFeedback     int                `json:"total_feedback"`
	PerSystemAccuracy map[string]float64 `json:"per_system_accuracy"`
	LastRetrainAt     *time.Time         `json:"last_retrain_at"`
	RetrainCount      int                `json:"retrain_count"`
	FeedbackSince     int                `json:"feedback_since_retrain"`
	Trained           bool               `json:"trained"`
}

// DashboardStats is the corpus overview for the admin dashboard.
type DashboardStats struct {
	TotalCases           int            `json:"total_cases"`
	TotalFeedback        int            `json:"total_feedback"`
	CasesBySystem        map[string]int `json:"cases_by_system"`
	CasesWithFeedback    int            `json:"cases_with_feedback"`
	AverageEffectiveness float64        `json:"average_effectiveness"`
}

package models

// RetrievalResult is a single ranked hit returned by an index search.
// Distance is nil when the backend did not report one; lower is more relevant.
type RetrievalResult struct {
	ID       string   `json:"id"`
	Document string   `json:"document"`
	Metadata Metadata `json:"metadata"`
	Distance *float64 `json:"distance"`
}

// Similarity converts the distance into a relevance score in (0, 1].
// Returns nil when the distance is unknown.
func (r RetrievalResult) Similarity() *float64 {
	if r.Distance == nil {
		return nil
	}
	s := SimilarityFromDistance(*r.Distance)
	return &s
}

// SimilarityFromDistance maps a non-negative distance to 1/(1+d).
// It is a monotone relevance proxy, not a calibrated probability.
func SimilarityFromDistance(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1.0 / (1.0 + distance)
}

// ScoredResult is a retrieval result with its derived similarity attached
type ScoredResult struct {
	RetrievalResult
	Similarity *float64 `json:"similarity_score"`
}

// RetrievalSummary describes what a retrieval step produced
type RetrievalSummary struct {
	TotalRetrieved int      `json:"total_retrieved"`
	RecipeNames    []string `json:"recipes"`
	Categories     []string `json:"categories"`
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

// Package listing defines the records flowing through the trust pipeline:
// the normalized listing assembled by ingestion and the immutable report
// produced per listing by the orchestrator.
package listing

// Record is one product listing, merged from every source row sharing the
// same product identifier.
type Record struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Images      []string  `json:"images"`
	Reviews     []string  `json:"reviews"`
	Ratings     []float64 `json:"ratings"`
	Returns     int       `json:"returns"`
}

// Verdict is the moderation decision derived from the trust score.
type Verdict string

const (
	VerdictPass   Verdict = "Pass"
	VerdictFlag   Verdict = "Flag"
	VerdictManual Verdict = "Manual"
)

// Breakdown carries the per-signal risk scores behind a trust score.
type Breakdown struct {
	TextRisk   float64 `json:"text_risk"`
	VisualRisk float64 `json:"visual_risk"`
	RulesRisk  float64 `json:"rules_risk"`
	BrandFlag  bool    `json:"brand_flag"`
}

// Explanation holds the free-text rationale per signal.
type Explanation struct {
	Text   string `json:"text"`
	Visual string `json:"visual"`
	Rules  string `json:"rules"`
}

// Report is the scored output for one listing. It is assembled once by the
// orchestrator and never mutated afterwards.
type Report struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	TrustScore  int         `json:"trust_score"`
	Verdict     Verdict     `json:"verdict"`
	Breakdown   Breakdown   `json:"breakdown"`
	Explanation Explanation `json:"explanation"`
}

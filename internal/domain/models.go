package domain

// Domain contains core models shared across pipeline stages.

// Article is a single feed entry flowing through the pipeline. Source names
// the feed the entry came from. AISummary is empty until the summarizer stage
// runs; it falls back to Summary when extraction or generation fails.
type Article struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Summary   string `json:"summary"`
	Source    string `json:"source"`
	AISummary string `json:"ai_summary,omitempty"`
}

package models

import "time"

// ShadowQuery is a search query the assistant issued while answering.
// Hidden is true when the query was ever sourced from an internal-only field.
type ShadowQuery struct {
	Text   string `json:"text"`
	Hidden bool   `json:"hidden"`
}

// Citation is a source referenced by the assistant's answer.
// RefIndex is zero until the per-prompt dedup assigns it.
type Citation struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	RefIndex int    `json:"refIndex,omitempty"`
}

// DedupKey returns the URL when present, otherwise the title.
func (c Citation) DedupKey() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Title
}

// PromptGroup collects the search activity attributed to one user message.
type PromptGroup struct {
	UserPrompt    string        `json:"userPrompt"`
	ShadowQueries []ShadowQuery `json:"shadowQueries"`
	Citations     []Citation    `json:"citations"`
	Model         string        `json:"model"`
}

// Report is the result of one extraction over a conversation record.
type Report struct {
	ConversationID     string        `json:"conversationId"`
	Results            []PromptGroup `json:"results"`
	TotalShadowQueries int           `json:"totalShadowQueries"`
	TotalCitations     int           `json:"totalCitations"`
	ExtractedAt        time.Time     `json:"extractedAt"`
}

// HasResults reports whether at least one prompt group survived extraction.
func (r *Report) HasResults() bool {
	return r != nil && len(r.Results) > 0
}

// HiddenCount returns the number of hidden queries across all groups.
func (r *Report) HiddenCount() int {
	n := 0
	for _, g := range r.Results {
		for _, q := range g.ShadowQueries {
			if q.Hidden {
				n++
			}
		}
	}
	return n
}

package models

// DebugSummary is a structural inventory of every message in a conversation,
// produced when an extraction finds nothing.
type DebugSummary struct {
	TotalMessages int              `json:"totalMessages"`
	Messages      []MessageSummary `json:"messages"`
}

// MessageSummary describes the shape of one message node.
type MessageSummary struct {
	NodeID                string   `json:"nodeId"`
	Role                  string   `json:"role"`
	AuthorName            string   `json:"authorName,omitempty"`
	Recipient             string   `json:"recipient,omitempty"`
	ContentType           string   `json:"contentType"`
	PartCount             int      `json:"partCount"`
	HasResult             bool     `json:"hasResult"`
	MetadataKeys          []string `json:"metadataKeys"`
	HasHiddenQueries      bool     `json:"hasHiddenQueries"`
	HasVisibleQueries     bool     `json:"hasVisibleQueries"`
	HasContentReferences  bool     `json:"hasContentReferences"`
	HasCitationMetadata   bool     `json:"hasCitationMetadata"`
	HasSearchResultGroups bool     `json:"hasSearchResultGroups"`
}

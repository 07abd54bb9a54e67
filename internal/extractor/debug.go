package extractor

import (
	"sort"

	"shadowquery-workers/internal/models"
)

// Summarize inventories the structure of every message node, for diagnosing
// conversations in which nothing was found.
func Summarize(g *Graph) *models.DebugSummary {
	summary := &models.DebugSummary{Messages: []models.MessageSummary{}}
	g.Each(func(n *Node) {
		msg := n.Message
		if msg == nil {
			return
		}

		keys := make([]string, 0, len(msg.Metadata))
		for k := range msg.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		summary.Messages = append(summary.Messages, models.MessageSummary{
			NodeID:                n.ID,
			Role:                  msg.Role,
			AuthorName:            msg.AuthorName,
			Recipient:             msg.Recipient,
			ContentType:           msg.ContentType,
			PartCount:             len(msg.Parts),
			HasResult:             msg.Result != "",
			MetadataKeys:          keys,
			HasHiddenQueries:      msg.Metadata[FieldHiddenQueries] != nil,
			HasVisibleQueries:     msg.Metadata[FieldVisibleQueries] != nil,
			HasContentReferences:  msg.Metadata["content_references"] != nil,
			HasCitationMetadata:   msg.Metadata["citation_metadata"] != nil,
			HasSearchResultGroups: msg.Metadata["search_result_groups"] != nil,
		})
	})
	summary.TotalMessages = len(summary.Messages)
	return summary
}

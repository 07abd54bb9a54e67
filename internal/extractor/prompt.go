package extractor

import "strings"

// UnknownPrompt is returned when no user message can be found above a node.
const UnknownPrompt = "(unknown prompt)"

// ResolvePrompt walks from node up through its ancestors to the nearest
// user-authored message and returns its text. The walk never revisits an id
// and takes at most g.Len()+1 steps.
func ResolvePrompt(g *Graph, node *Node) string {
	visited := make(map[string]bool)
	limit := g.Len() + 1

	for cur := node; cur != nil && limit > 0; limit-- {
		if visited[cur.ID] {
			break
		}
		visited[cur.ID] = true

		if cur.Message != nil && cur.Message.Role == RoleUser {
			if text := userText(cur.Message); text != "" {
				return text
			}
			return UnknownPrompt
		}

		next, ok := g.Get(cur.Parent)
		if !ok {
			break
		}
		cur = next
	}
	return UnknownPrompt
}

// userText joins the plain-string parts of a message with single spaces.
func userText(msg *Message) string {
	var texts []string
	for _, p := range msg.Parts {
		if s, ok := p.(string); ok {
			texts = append(texts, s)
		}
	}
	return strings.TrimSpace(strings.Join(texts, " "))
}

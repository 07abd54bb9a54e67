package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	apperrors "shadowquery-workers/internal/common/errors"
)

// Document is a parsed conversation record.
type Document struct {
	Graph            *Graph
	Model            string
	DefaultModelSlug string
	ConversationID   string
}

// ParseDocument decodes a conversation record. The mapping's key order in the
// JSON text becomes the graph's iteration order. A missing, null or non-object
// mapping is the only failure and carries EXTRACTION_FAILED.
func ParseDocument(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, apperrors.NewExtractionFailedError(fmt.Sprintf("document is not a JSON object: %v", err))
	}

	raw, ok := top["mapping"]
	if !ok || isNull(raw) {
		return nil, apperrors.NewExtractionFailedError("document has no mapping")
	}

	order, nodes, err := decodeMapping(raw)
	if err != nil {
		return nil, apperrors.NewExtractionFailedError(err.Error())
	}

	doc := &Document{Graph: NewGraph(order, nodes)}
	doc.Model = rawString(top["model"])
	doc.DefaultModelSlug = rawString(top["default_model_slug"])
	doc.ConversationID = rawString(top["conversation_id"])
	if doc.ConversationID == "" {
		doc.ConversationID = rawString(top["id"])
	}
	return doc, nil
}

// DocumentFromMap builds a document from an already-decoded value, such as
// job variables. Node order is the sorted id order.
func DocumentFromMap(top map[string]any) (*Document, error) {
	if top == nil {
		return nil, apperrors.NewExtractionFailedError("document is empty")
	}
	rawMapping, ok := top["mapping"]
	if !ok || rawMapping == nil {
		return nil, apperrors.NewExtractionFailedError("document has no mapping")
	}
	mapping, ok := rawMapping.(map[string]any)
	if !ok {
		return nil, apperrors.NewExtractionFailedError(fmt.Sprintf("mapping is %T, not an object", rawMapping))
	}

	ids := make([]string, 0, len(mapping))
	nodes := make(map[string]*Node, len(mapping))
	for id, v := range mapping {
		ids = append(ids, id)
		nodes[id] = nodeFromValue(id, v)
	}
	sort.Strings(ids)

	doc := &Document{
		Graph:            NewGraph(ids, nodes),
		Model:            asString(top["model"]),
		DefaultModelSlug: asString(top["default_model_slug"]),
		ConversationID:   asString(top["conversation_id"]),
	}
	if doc.ConversationID == "" {
		doc.ConversationID = asString(top["id"])
	}
	return doc, nil
}

func decodeMapping(raw json.RawMessage) ([]string, map[string]*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("reading mapping: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("mapping is not an object")
	}

	var order []string
	nodes := make(map[string]*Node)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("reading mapping key: %w", err)
		}
		id, _ := keyTok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("reading node %q: %w", id, err)
		}
		if _, dup := nodes[id]; !dup {
			order = append(order, id)
		}
		nodes[id] = nodeFromValue(id, v)
	}
	return order, nodes, nil
}

// nodeFromValue reads one node leniently. Wrong shapes degrade to zero values.
func nodeFromValue(id string, v any) *Node {
	n := &Node{ID: id}
	m := asMap(v)
	if m == nil {
		return n
	}
	n.Parent = asString(m["parent"])
	if msg := asMap(m["message"]); msg != nil {
		n.Message = messageFromValue(msg)
	}
	return n
}

func messageFromValue(m map[string]any) *Message {
	msg := &Message{
		Metadata:  asMap(m["metadata"]),
		Recipient: asString(m["recipient"]),
	}
	if author := asMap(m["author"]); author != nil {
		msg.Role = asString(author["role"])
		msg.AuthorName = asString(author["name"])
	}
	if content := asMap(m["content"]); content != nil {
		msg.ContentType = asString(content["content_type"])
		msg.Parts = asSlice(content["parts"])
		msg.Result = asString(content["result"])
	}
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}
	return msg
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func rawString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

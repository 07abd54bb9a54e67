// Package extractor recovers the hidden web searches an AI assistant issued
// while answering, and the citations they produced, from a tree-shaped
// conversation record.
package extractor

import (
	"fmt"
	"strings"
	"time"

	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/common/logger"
	"shadowquery-workers/internal/models"
)

// UnknownModel is reported when no model identifier is recorded anywhere.
const UnknownModel = "unknown"

// Extractor turns conversation documents into reports. It holds no
// per-call state and is safe for concurrent use.
type Extractor struct {
	logger logger.Logger
	now    func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the time source used for Report.ExtractedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New returns an Extractor logging through log. A nil log discards output.
func New(log logger.Logger, opts ...Option) *Extractor {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	e := &Extractor{logger: log, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// findings are the raw, not yet deduplicated results of one node.
type findings struct {
	hidden    []string
	visible   []string
	citations []models.Citation
}

func (f *findings) empty() bool {
	return len(f.hidden) == 0 && len(f.visible) == 0 && len(f.citations) == 0
}

type bucket struct {
	prompt    string
	model     string
	hidden    []string
	visible   []string
	citations []models.Citation
}

// ExtractBytes parses data and extracts it in one step.
func (e *Extractor) ExtractBytes(data []byte, conversationID string) (*models.Report, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return e.Extract(doc, conversationID)
}

// Extract scans every node of the document once and groups its search
// activity by triggering prompt. When conversationID is empty the document's
// own identifier is used.
func (e *Extractor) Extract(doc *Document, conversationID string) (*models.Report, error) {
	if doc == nil || doc.Graph == nil {
		return nil, apperrors.NewExtractionFailedError("document has no mapping")
	}
	if conversationID == "" {
		conversationID = doc.ConversationID
	}

	var buckets []*bucket
	index := make(map[string]*bucket)
	skipped := 0

	doc.Graph.Each(func(n *Node) {
		if n.Message == nil {
			return
		}
		f, err := e.scanNode(n)
		if err != nil {
			skipped++
			e.logger.Warn("skipping malformed node", map[string]interface{}{
				"conversationId": conversationID,
				"nodeId":         n.ID,
				"error":          err.Error(),
			})
			return
		}
		if f.empty() {
			return
		}

		prompt := ResolvePrompt(doc.Graph, n)
		b, ok := index[prompt]
		if !ok {
			b = &bucket{prompt: prompt, model: modelFor(n.Message, doc)}
			index[prompt] = b
			buckets = append(buckets, b)
		}
		b.hidden = append(b.hidden, f.hidden...)
		b.visible = append(b.visible, f.visible...)
		b.citations = append(b.citations, f.citations...)
	})

	report := &models.Report{
		ConversationID: conversationID,
		Results:        []models.PromptGroup{},
		ExtractedAt:    e.now().UTC(),
	}
	for _, b := range buckets {
		group := b.finalize()
		if len(group.ShadowQueries) == 0 && len(group.Citations) == 0 {
			continue
		}
		report.TotalShadowQueries += len(group.ShadowQueries)
		report.TotalCitations += len(group.Citations)
		report.Results = append(report.Results, group)
	}

	e.logger.Debug("extraction finished", map[string]interface{}{
		"conversationId": conversationID,
		"nodes":          doc.Graph.Len(),
		"promptGroups":   len(report.Results),
		"shadowQueries":  report.TotalShadowQueries,
		"citations":      report.TotalCitations,
		"skippedNodes":   skipped,
	})
	return report, nil
}

// scanNode gathers the raw findings of one message. A panic while reading an
// unexpected shape is turned into an error so the scan can continue.
func (e *Extractor) scanNode(n *Node) (f *findings, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("node %s: %v", n.ID, r)
		}
	}()

	msg := n.Message
	f = &findings{
		hidden:  NormalizeQueries(msg.Metadata[FieldHiddenQueries]),
		visible: NormalizeQueries(msg.Metadata[FieldVisibleQueries]),
	}
	if len(f.hidden) == 0 && len(f.visible) == 0 {
		f.hidden = NormalizeQueries(msg.Metadata[FieldFallbackQueries])
	}

	for _, raw := range msg.Parts {
		if part := asMap(raw); part != nil {
			f.collectQueries(part)
		}
	}
	if parsed, ok := probeObject(msg.Result); ok {
		f.collectQueries(parsed)
	}

	f.citations = ExtractCitations(msg)
	return f, nil
}

func (f *findings) collectQueries(m map[string]any) {
	f.hidden = append(f.hidden, NormalizeQueries(m[FieldHiddenQueries])...)
	f.visible = append(f.visible, NormalizeQueries(m[FieldVisibleQueries])...)
}

// finalize deduplicates the bucket. Hidden-sourced queries are emitted first
// so a text seen through any hidden field stays hidden.
func (b *bucket) finalize() models.PromptGroup {
	group := models.PromptGroup{
		UserPrompt:    b.prompt,
		ShadowQueries: []models.ShadowQuery{},
		Citations:     []models.Citation{},
		Model:         b.model,
	}

	seen := make(map[string]bool)
	emit := func(texts []string, hidden bool) {
		for _, t := range texts {
			key := strings.ToLower(t)
			if seen[key] {
				continue
			}
			seen[key] = true
			group.ShadowQueries = append(group.ShadowQueries, models.ShadowQuery{Text: t, Hidden: hidden})
		}
	}
	emit(b.hidden, true)
	emit(b.visible, false)

	seenCitations := make(map[string]bool)
	for _, c := range b.citations {
		key := c.DedupKey()
		if key == "" || seenCitations[key] {
			continue
		}
		seenCitations[key] = true
		c.RefIndex = len(group.Citations) + 1
		group.Citations = append(group.Citations, c)
	}
	return group
}

func modelFor(msg *Message, doc *Document) string {
	for _, m := range []string{
		trimmed(msg.Metadata, "model_slug"),
		trimmed(msg.Metadata, "default_model_slug"),
		strings.TrimSpace(doc.Model),
		strings.TrimSpace(doc.DefaultModelSlug),
	} {
		if m != "" {
			return m
		}
	}
	return UnknownModel
}

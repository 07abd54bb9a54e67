package extractor

import (
	"strings"

	"shadowquery-workers/internal/models"
)

// Citation type tags.
const (
	CitationTypeCitation     = "Citation"
	CitationTypeSearchResult = "Search Result"
	CitationTypeFootnote     = "Footnote"
	CitationTypeSource       = "Source"
)

// ExtractCitations collects citation candidates from every known location of
// one message, deduplicated by url (or title when the url is empty). RefIndex
// is left unset.
func ExtractCitations(msg *Message) []models.Citation {
	if msg == nil {
		return nil
	}
	c := &citationSet{seen: make(map[string]bool)}

	c.fromContentReferences(msg.Metadata["content_references"])
	c.fromCitationMetadata(msg.Metadata["citation_metadata"])
	c.fromEntries(msg.Metadata["citations"], CitationTypeCitation)
	c.fromResultGroups(msg.Metadata["search_result_groups"])
	c.fromParts(msg.Parts)
	if parsed, ok := probeObject(msg.Result); ok {
		c.fromResultGroups(parsed["search_result_groups"])
	}

	return c.out
}

type citationSet struct {
	seen map[string]bool
	out  []models.Citation
}

func (c *citationSet) add(title, url, typ string) {
	cit := models.Citation{
		Title: strings.TrimSpace(title),
		URL:   strings.TrimSpace(url),
		Type:  typ,
	}
	key := cit.DedupKey()
	if key == "" || c.seen[key] {
		return
	}
	c.seen[key] = true
	c.out = append(c.out, cit)
}

// addEntry reads title/url from the entry or from its nested metadata object.
func (c *citationSet) addEntry(entry map[string]any, typ string) {
	title, url := asString(entry["title"]), asString(entry["url"])
	if meta := asMap(entry["metadata"]); meta != nil {
		if strings.TrimSpace(title) == "" {
			title = asString(meta["title"])
		}
		if strings.TrimSpace(url) == "" {
			url = asString(meta["url"])
		}
	}
	c.add(title, url, typ)
}

func (c *citationSet) fromContentReferences(v any) {
	for _, raw := range asSlice(v) {
		ref := asMap(raw)
		if ref == nil {
			continue
		}
		typ := trimmed(ref, "type")
		if typ == "" {
			typ = CitationTypeCitation
		}
		c.add(asString(ref["title"]), asString(ref["url"]), typ)

		for _, rawItem := range asSlice(ref["items"]) {
			item := asMap(rawItem)
			if item == nil {
				continue
			}
			itemType := trimmed(item, "type")
			if itemType == "" {
				itemType = typ
			}
			c.add(asString(item["title"]), asString(item["url"]), itemType)
		}
	}
}

func (c *citationSet) fromCitationMetadata(v any) {
	meta := asMap(v)
	if meta == nil {
		return
	}
	c.fromEntries(meta["citations"], CitationTypeCitation)
	c.fromEntries(meta["metadata_list"], CitationTypeCitation)
}

func (c *citationSet) fromEntries(v any, typ string) {
	for _, raw := range asSlice(v) {
		if entry := asMap(raw); entry != nil {
			c.addEntry(entry, typ)
		}
	}
}

func (c *citationSet) fromResultGroups(v any) {
	for _, raw := range asSlice(v) {
		group := asMap(raw)
		if group == nil {
			continue
		}
		entries := asSlice(group["entries"])
		if entries == nil {
			entries = asSlice(group["search_results"])
		}
		c.fromEntries(entries, CitationTypeSearchResult)
	}
}

func (c *citationSet) fromParts(parts []any) {
	for _, raw := range parts {
		part := asMap(raw)
		if part == nil {
			continue
		}
		title, url := asString(part["title"]), asString(part["url"])
		switch {
		case trimmed(part, "type") == "citation" || trimmed(part, "content_type") == "citation":
			c.add(title, url, CitationTypeFootnote)
		case strings.TrimSpace(url) != "" && strings.TrimSpace(title) != "":
			c.add(title, url, CitationTypeSource)
		}
	}
}

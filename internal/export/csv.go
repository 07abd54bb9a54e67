// Package export renders reports as delimited text for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/models"
)

// Header is the first row of every export.
var Header = []string{"prompt", "query", "hidden", "citation_ref", "citation_title", "citation_url", "citation_type"}

// WriteCSV writes one row per shadow query and then one row per citation for
// each prompt group, in report order. It returns the number of data rows.
func WriteCSV(w io.Writer, report *models.Report) (int, error) {
	if report == nil {
		return 0, apperrors.NewExportFailedError(fmt.Errorf("no report to export"))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, apperrors.NewExportFailedError(err)
	}

	rows := 0
	for _, group := range report.Results {
		for _, q := range group.ShadowQueries {
			if err := cw.Write([]string{cell(group.UserPrompt), cell(q.Text), strconv.FormatBool(q.Hidden), "", "", "", ""}); err != nil {
				return rows, apperrors.NewExportFailedError(err)
			}
			rows++
		}
		for _, c := range group.Citations {
			ref := ""
			if c.RefIndex > 0 {
				ref = strconv.Itoa(c.RefIndex)
			}
			if err := cw.Write([]string{cell(group.UserPrompt), "", "", ref, cell(c.Title), cell(c.URL), cell(c.Type)}); err != nil {
				return rows, apperrors.NewExportFailedError(err)
			}
			rows++
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, apperrors.NewExportFailedError(err)
	}
	return rows, nil
}

// RenderCSV is WriteCSV into a string.
func RenderCSV(report *models.Report) (string, int, error) {
	var sb strings.Builder
	n, err := WriteCSV(&sb, report)
	if err != nil {
		return "", n, err
	}
	return sb.String(), n, nil
}

// Filename names the export after the conversation and extraction time.
func Filename(report *models.Report) string {
	id := "conversation"
	ts := "00000000-000000"
	if report != nil {
		if report.ConversationID != "" {
			id = sanitize(report.ConversationID)
		}
		if !report.ExtractedAt.IsZero() {
			ts = report.ExtractedAt.UTC().Format("20060102-150405")
		}
	}
	return fmt.Sprintf("shadow-queries-%s-%s.csv", id, ts)
}

// cell prefixes text that a spreadsheet would evaluate as a formula.
func cell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

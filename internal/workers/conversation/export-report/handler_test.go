// internal/workers/conversation/export-report/handler_test.go
package exportreport

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/common/logger"
	"shadowquery-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHandler(t *testing.T, maxRows int) *Handler {
	return NewHandler(&Config{Timeout: time.Second, MaxRows: maxRows}, logger.NewTestLogger(t))
}

func sampleReport() *models.Report {
	return &models.Report{
		ConversationID: "conv-9",
		Results: []models.PromptGroup{{
			UserPrompt:    "p",
			ShadowQueries: []models.ShadowQuery{{Text: "q1", Hidden: true}, {Text: "q2"}},
			Citations:     []models.Citation{{Title: "T", URL: "https://t.example", Type: "Citation", RefIndex: 1}},
		}},
		TotalShadowQueries: 2,
		TotalCitations:     1,
		ExtractedAt:        time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

func TestHandler_Execute_Success(t *testing.T) {
	out, err := createTestHandler(t, 0).Execute(context.Background(), &Input{Report: sampleReport()})
	require.NoError(t, err)

	assert.Equal(t, "shadow-queries-conv-9-20260506-070809.csv", out.Filename)
	assert.Equal(t, 3, out.RowCount)
	lines := strings.Split(strings.TrimSpace(out.CSV), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "p,q1,true,,,,", lines[1])
	assert.Equal(t, "p,,,1,T,https://t.example,Citation", lines[3])
}

func TestHandler_Execute_RowLimit(t *testing.T) {
	_, err := createTestHandler(t, 2).Execute(context.Background(), &Input{Report: sampleReport()})
	assert.Equal(t, apperrors.ErrCodeExportFailed, apperrors.CodeOf(err))
}

func TestHandler_Execute_MissingReport(t *testing.T) {
	_, err := createTestHandler(t, 0).Execute(context.Background(), &Input{})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name    string
		vars    string
		wantErr bool
	}{
		{"valid", `{"report": {"conversationId": "c", "results": [{"userPrompt": "p", "shadowQueries": [], "citations": []}]}}`, false},
		{"missing report", `{}`, true},
		{"null report", `{"report": null}`, true},
		{"results missing", `{"report": {"conversationId": "c"}}`, true},
		{"group without prompt", `{"report": {"conversationId": "c", "results": [{}]}}`, true},
		{"not json", `{`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := parseInput(tt.vars)
			if tt.wantErr {
				assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c", input.Report.ConversationID)
		})
	}
}

package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	report := &models.Report{
		ConversationID: "conv-1",
		Results: []models.PromptGroup{
			{
				UserPrompt:    `shoes, "trail"`,
				ShadowQueries: []models.ShadowQuery{{Text: "trail shoes", Hidden: true}, {Text: "best shoes", Hidden: false}},
				Citations:     []models.Citation{{Title: "Review", URL: "https://r.example", Type: "Citation", RefIndex: 1}},
			},
			{
				UserPrompt: "second",
				Citations:  []models.Citation{{Title: "Note", Type: "Footnote"}},
			},
		},
	}

	var buf bytes.Buffer
	n, err := WriteCSV(&buf, report)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		Header,
		{`shoes, "trail"`, "trail shoes", "true", "", "", "", ""},
		{`shoes, "trail"`, "best shoes", "false", "", "", "", ""},
		{`shoes, "trail"`, "", "", "1", "Review", "https://r.example", "Citation"},
		{"second", "", "", "", "Note", "", "Footnote"},
	}, records)
}

func TestWriteCSV_EmptyReport(t *testing.T) {
	out, n, err := RenderCSV(&models.Report{Results: []models.PromptGroup{}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "prompt,query,hidden,citation_ref,citation_title,citation_url,citation_type\n", out)
}

func TestWriteCSV_NilReport(t *testing.T) {
	_, err := WriteCSV(&bytes.Buffer{}, nil)
	assert.Equal(t, apperrors.ErrCodeExportFailed, apperrors.CodeOf(err))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSV_WriterFailure(t *testing.T) {
	_, err := WriteCSV(failingWriter{}, &models.Report{})
	assert.Equal(t, apperrors.ErrCodeExportFailed, apperrors.CodeOf(err))
}

func TestFilename(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 5, 3, 0, time.UTC)

	assert.Equal(t, "shadow-queries-abc-123-20261014-090503.csv",
		Filename(&models.Report{ConversationID: "abc-123", ExtractedAt: at}))
	assert.Equal(t, "shadow-queries-a_b_c-20261014-090503.csv",
		Filename(&models.Report{ConversationID: "a/b c", ExtractedAt: at}))
	assert.Equal(t, "shadow-queries-conversation-00000000-000000.csv", Filename(nil))
}

func TestWriteCSV_NeutralizesFormulas(t *testing.T) {
	report := &models.Report{
		ConversationID: "conv-1",
		Results: []models.PromptGroup{{
			UserPrompt:    "=HYPERLINK(\"https://evil.example\")",
			ShadowQueries: []models.ShadowQuery{{Text: "-2+3", Hidden: true}, {Text: "plain query"}},
			Citations:     []models.Citation{{Title: "@SUM(A1:A9)", URL: "https://ok.example", Type: "Citation", RefIndex: 1}},
		}},
	}

	out, _, err := RenderCSV(report)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, `'=HYPERLINK("https://evil.example")`, records[1][0])
	assert.Equal(t, "'-2+3", records[1][1])
	assert.Equal(t, "plain query", records[2][1])
	assert.Equal(t, "'@SUM(A1:A9)", records[3][4])
	assert.Equal(t, "https://ok.example", records[3][5])
}

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"object mapping", `{"mapping": {"a": {}}, "model": null}`, true},
		{"empty mapping", `{"mapping": {}}`, true},
		{"lenient top-level fields", `{"mapping": {}, "model": 4, "conversation_id": null, "default_model_slug": []}`, true},
		{"missing mapping", `{"title": "x"}`, false},
		{"array mapping", `{"mapping": []}`, false},
		{"not an object", `[1, 2]`, false},
		{"not json", `{oops`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateDocument([]byte(tt.input))
			assert.Equal(t, tt.valid, result.Valid, result.Summary())
			if !tt.valid {
				assert.NotEmpty(t, result.Errors)
			}
		})
	}
}

func TestValidateDocumentMap(t *testing.T) {
	assert.True(t, ValidateDocumentMap(map[string]interface{}{"mapping": map[string]interface{}{}}).Valid)

	result := ValidateDocumentMap(map[string]interface{}{"mapping": "nope"})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Summary(), "mapping")
}

func TestValidateExtractInput(t *testing.T) {
	assert.True(t, ValidateExtractInput(map[string]interface{}{
		"conversationId": "c1",
		"persist":        true,
	}).Valid)

	assert.True(t, ValidateExtractInput(map[string]interface{}{}).Valid)

	result := ValidateExtractInput(map[string]interface{}{"persist": "yes", "document": []interface{}{}})
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}

func TestValidateReport(t *testing.T) {
	assert.True(t, ValidateReport(map[string]interface{}{
		"conversationId": "c1",
		"results": []interface{}{
			map[string]interface{}{"userPrompt": "p", "shadowQueries": []interface{}{}, "citations": nil},
		},
	}).Valid)

	assert.False(t, ValidateReport(map[string]interface{}{"conversationId": "c1"}).Valid)
	assert.False(t, ValidateReport(map[string]interface{}{
		"conversationId": "c1",
		"results":        []interface{}{map[string]interface{}{}},
	}).Valid)
}

package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ConversationDocumentSchema checks only that the record carries a keyed
// mapping. Every other field is read leniently by the extractor.
const ConversationDocumentSchema = `{
  "type": "object",
  "required": ["mapping"],
  "properties": {
    "mapping": {"type": "object"}
  }
}`

// ExtractInputSchema type-checks the extract-shadow-queries job variables.
// A missing conversation id is reported by the worker itself.
const ExtractInputSchema = `{
  "type": "object",
  "properties": {
    "conversationId": {"type": "string"},
    "sessionHandle": {"type": "string"},
    "sessionCookie": {"type": "string"},
    "accessToken": {"type": "string"},
    "document": {"type": ["object", "null"]},
    "persist": {"type": "boolean"},
    "refresh": {"type": "boolean"}
  }
}`

// ReportSchema describes the report handed to export-report.
const ReportSchema = `{
  "type": "object",
  "required": ["conversationId", "results"],
  "properties": {
    "conversationId": {"type": "string"},
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["userPrompt"],
        "properties": {
          "userPrompt": {"type": "string"},
          "shadowQueries": {"type": ["array", "null"]},
          "citations": {"type": ["array", "null"]}
        }
      }
    }
  }
}`

var (
	documentSchema     = gojsonschema.NewStringLoader(ConversationDocumentSchema)
	extractInputSchema = gojsonschema.NewStringLoader(ExtractInputSchema)
	reportSchema       = gojsonschema.NewStringLoader(ReportSchema)
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins all error messages into one line.
func (r *ValidationResult) Summary() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// ValidateDocument checks a raw conversation record.
func ValidateDocument(data []byte) *ValidationResult {
	return validate(documentSchema, gojsonschema.NewBytesLoader(data))
}

// ValidateDocumentMap checks a conversation record passed as job variables.
func ValidateDocumentMap(doc map[string]interface{}) *ValidationResult {
	return validate(documentSchema, gojsonschema.NewGoLoader(doc))
}

// ValidateExtractInput checks extract-shadow-queries job variables.
func ValidateExtractInput(vars map[string]interface{}) *ValidationResult {
	return validate(extractInputSchema, gojsonschema.NewGoLoader(vars))
}

// ValidateReport checks a serialized report.
func ValidateReport(report interface{}) *ValidationResult {
	return validate(reportSchema, gojsonschema.NewGoLoader(report))
}

func validate(schema, document gojsonschema.JSONLoader) *ValidationResult {
	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_JSON",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/common/validation"
)

const Version = "1.0.0"

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Builtin describes the job types served by the worker manager.
func Builtin() *ActivityRegistry {
	return &ActivityRegistry{
		Version: Version,
		Activities: []Activity{
			{
				ID:           "extract-shadow-queries",
				DisplayName:  "Extract Shadow Queries",
				Description:  "Fetches a conversation record and reports the search queries and citations behind each user prompt",
				Category:     "conversation",
				TaskType:     "extract-shadow-queries",
				InputSchema:  mustSchema(validation.ExtractInputSchema),
				OutputFields: []string{"report", "status", "message", "cached", "debug"},
				ErrorCodes: codes(
					apperrors.ErrCodeNoConversation,
					apperrors.ErrCodeInvalidInput,
					apperrors.ErrCodeNotLoggedIn,
					apperrors.ErrCodeAuthFailed,
					apperrors.ErrCodeTokenExpired,
					apperrors.ErrCodeRateLimited,
					apperrors.ErrCodeFetchFailed,
					apperrors.ErrCodeExtractionFailed,
					apperrors.ErrCodeReportPersistFailed,
				),
				Timeout: "30s",
				Retries: apperrors.GetRetryCount(apperrors.ErrCodeFetchFailed),
				Tags:    []string{"chatgpt", "search", "citations"},
			},
			{
				ID:           "export-report",
				DisplayName:  "Export Report",
				Description:  "Renders an extraction report as CSV",
				Category:     "conversation",
				TaskType:     "export-report",
				InputSchema:  mustSchema(validation.ReportSchema),
				OutputFields: []string{"filename", "csv", "rowCount"},
				ErrorCodes: codes(
					apperrors.ErrCodeInvalidInput,
					apperrors.ErrCodeExportFailed,
				),
				Timeout: "10s",
				Tags:    []string{"csv", "export"},
			},
		},
	}
}

// Find returns the activity bound to taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validate reports duplicate task types and entries without one.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if a.TaskType == "" {
			return fmt.Errorf("activity %q has no taskType", a.ID)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("duplicate taskType %q", a.TaskType)
		}
		seen[a.TaskType] = true
	}
	return nil
}

func mustSchema(s string) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		panic(fmt.Sprintf("registry: invalid schema: %v", err))
	}
	return m
}

func codes(cs ...apperrors.ErrorCode) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

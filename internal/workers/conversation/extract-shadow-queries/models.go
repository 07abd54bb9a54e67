// internal/workers/conversation/extract-shadow-queries/models.go
package extractshadowqueries

import "shadowquery-workers/internal/models"

const (
	StatusOK              = "OK"
	StatusNoSearchQueries = "NO_SEARCH_QUERIES"
)

type Input struct {
	ConversationID string                 `json:"conversationId"`
	SessionHandle  string                 `json:"sessionHandle,omitempty"`
	SessionCookie  string                 `json:"sessionCookie,omitempty"`
	AccessToken    string                 `json:"accessToken,omitempty"`
	Document       map[string]interface{} `json:"document,omitempty"`
	Persist        *bool                  `json:"persist,omitempty"`
	Refresh        bool                   `json:"refresh,omitempty"`
}

type Output struct {
	Report  *models.Report       `json:"report"`
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Cached  bool                 `json:"cached"`
	Debug   *models.DebugSummary `json:"debug,omitempty"`
}

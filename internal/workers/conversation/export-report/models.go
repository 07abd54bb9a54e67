// internal/workers/conversation/export-report/models.go
package exportreport

import "shadowquery-workers/internal/models"

type Input struct {
	Report *models.Report `json:"report"`
}

type Output struct {
	Filename string `json:"filename"`
	CSV      string `json:"csv"`
	RowCount int    `json:"rowCount"`
}

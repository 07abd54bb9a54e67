// internal/workers/conversation/export-report/handler.go
package exportreport

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/common/logger"
	"shadowquery-workers/internal/common/metrics"
	"shadowquery-workers/internal/common/validation"
	"shadowquery-workers/internal/export"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "export-report"
)

type Handler struct {
	config       *Config
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		errorHandler: apperrors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	timer := metrics.StartJob(TaskType)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err == nil {
		var output *Output
		output, err = h.execute(ctx, input)
		if err == nil {
			timer.Done("")
			h.completeJob(ctx, client, job, output)
			return
		}
	}

	timer.Done(string(apperrors.Normalize(err).Code))
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func parseInput(variables string) (*Input, error) {
	var raw struct {
		Report json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	if len(raw.Report) == 0 || string(raw.Report) == "null" {
		return nil, apperrors.NewInvalidInputError("report is required")
	}

	var generic interface{}
	if err := json.Unmarshal(raw.Report, &generic); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse report: %v", err))
	}
	if result := validation.ValidateReport(generic); !result.Valid {
		return nil, apperrors.NewInvalidInputError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil || input.Report == nil {
		return nil, apperrors.NewInvalidInputError("report is required")
	}

	csv, rows, err := export.RenderCSV(input.Report)
	if err != nil {
		return nil, err
	}
	if h.config.MaxRows > 0 && rows > h.config.MaxRows {
		return nil, apperrors.NewExportFailedError(fmt.Errorf("export has %d rows, limit is %d", rows, h.config.MaxRows))
	}

	filename := export.Filename(input.Report)
	h.logger.Info("report exported", map[string]interface{}{
		"conversationId": input.Report.ConversationID,
		"filename":       filename,
		"rows":           rows,
	})

	return &Output{Filename: filename, CSV: csv, RowCount: rows}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

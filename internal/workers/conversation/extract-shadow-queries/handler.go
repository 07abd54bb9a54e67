// internal/workers/conversation/extract-shadow-queries/handler.go
package extractshadowqueries

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/common/logger"
	"shadowquery-workers/internal/common/metrics"
	"shadowquery-workers/internal/common/observability"
	"shadowquery-workers/internal/common/validation"
	"shadowquery-workers/internal/extractor"
	"shadowquery-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	TaskType = "extract-shadow-queries"

	noResultsMessage = "No search queries found. Try a prompt likely to trigger a web search."
)

// ConversationFetcher retrieves session credentials and conversation records.
type ConversationFetcher interface {
	FetchSession(ctx context.Context, cookie string) (*models.Session, error)
	FetchConversation(ctx context.Context, accessToken, conversationID string) ([]byte, error)
}

type ReportCache interface {
	Get(ctx context.Context, session, conversationID string) (*models.Report, bool, error)
	Put(ctx context.Context, session string, report *models.Report) error
}

type ReportStore interface {
	Save(ctx context.Context, report *models.Report) error
}

// Dependencies are the collaborators of the handler. Cache and Store are optional.
type Dependencies struct {
	Fetcher       ConversationFetcher
	Cache         ReportCache
	Store         ReportStore
	Extractor     *extractor.Extractor
	Observability *observability.Observability
}

type Handler struct {
	config       *Config
	deps         Dependencies
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	if deps.Extractor == nil {
		deps.Extractor = extractor.New(log)
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		deps:         deps,
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
	ctx, span := h.deps.Observability.StartSpan(ctx, TaskType, attribute.Int64("job.key", job.Key))
	defer span.End()

	input, err := parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, timer, err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.String("conversation.id", input.ConversationID))

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, timer, err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	d := timer.Done("")
	h.deps.Observability.RecordJobProcessed(ctx, TaskType, output.Status)
	h.deps.Observability.RecordJobDuration(ctx, TaskType, d, output.Status)
	h.completeJob(ctx, client, job, output)
}

func parseInput(variables string) (*Input, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	if result := validation.ValidateExtractInput(raw); !result.Valid {
		return nil, apperrors.NewInvalidInputError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ConversationID == "" {
		return nil, apperrors.NewNoConversationError()
	}
	log := h.logger.WithFields(map[string]interface{}{"conversationId": input.ConversationID})

	if cached := h.lookupCache(ctx, log, input); cached != nil {
		metrics.ExtractionsTotal.WithLabelValues("cached").Inc()
		return buildOutput(cached, nil, true), nil
	}

	doc, err := h.loadDocument(ctx, input)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeExtractionFailed) {
			metrics.ExtractionsTotal.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	report, err := h.deps.Extractor.Extract(doc, input.ConversationID)
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	h.deps.Observability.RecordNodesScanned(ctx, doc.Graph.Len())

	hidden := report.HiddenCount()
	metrics.RecordReport(hidden, report.TotalShadowQueries-hidden, report.TotalCitations)
	if report.HasResults() {
		metrics.ExtractionsTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.ExtractionsTotal.WithLabelValues("empty").Inc()
	}

	if h.deps.Cache != nil && h.config.CacheEnabled {
		if err := h.deps.Cache.Put(ctx, input.SessionHandle, report); err != nil {
			log.Warn("failed to cache report", map[string]interface{}{"error": err.Error()})
		}
	}

	if h.shouldPersist(input) {
		if h.deps.Store == nil {
			log.Warn("persist requested but no report archive is configured", nil)
		} else if err := h.deps.Store.Save(ctx, report); err != nil {
			return nil, err
		}
	}

	var debug *models.DebugSummary
	if !report.HasResults() {
		debug = extractor.Summarize(doc.Graph)
		log.Info("no search activity found", map[string]interface{}{
			"messages": debug.TotalMessages,
		})
	}

	return buildOutput(report, debug, false), nil
}

func (h *Handler) lookupCache(ctx context.Context, log logger.Logger, input *Input) *models.Report {
	if h.deps.Cache == nil || !h.config.CacheEnabled || input.Refresh || input.Document != nil {
		return nil
	}
	report, ok, err := h.deps.Cache.Get(ctx, input.SessionHandle, input.ConversationID)
	if err != nil {
		log.Warn("report cache unavailable, extracting", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if !ok {
		return nil
	}
	return report
}

// loadDocument takes the record from the job variables when present and
// otherwise fetches it, exchanging the session cookie for a token if needed.
func (h *Handler) loadDocument(ctx context.Context, input *Input) (*extractor.Document, error) {
	if input.Document != nil {
		if result := validation.ValidateDocumentMap(input.Document); !result.Valid {
			return nil, apperrors.NewExtractionFailedError(result.Summary())
		}
		return extractor.DocumentFromMap(input.Document)
	}

	if h.deps.Fetcher == nil {
		return nil, apperrors.NewInvalidInputError("no document supplied and no fetcher configured")
	}

	token := input.AccessToken
	if token == "" {
		if input.SessionCookie == "" {
			return nil, apperrors.NewNotLoggedInError("neither accessToken nor sessionCookie supplied")
		}
		session, err := h.deps.Fetcher.FetchSession(ctx, input.SessionCookie)
		if err != nil {
			return nil, err
		}
		token = session.AccessToken
	}

	data, err := h.deps.Fetcher.FetchConversation(ctx, token, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if result := validation.ValidateDocument(data); !result.Valid {
		return nil, apperrors.NewExtractionFailedError(result.Summary())
	}
	return extractor.ParseDocument(data)
}

func (h *Handler) shouldPersist(input *Input) bool {
	if input.Persist != nil {
		return *input.Persist
	}
	return h.config.PersistByDefault
}

func buildOutput(report *models.Report, debug *models.DebugSummary, cached bool) *Output {
	out := &Output{Report: report, Status: StatusOK, Cached: cached, Debug: debug}
	if report.HasResults() {
		out.Message = fmt.Sprintf("Found %d shadow queries and %d citations across %d prompts",
			report.TotalShadowQueries, report.TotalCitations, len(report.Results))
	} else {
		out.Status = StatusNoSearchQueries
		out.Message = noResultsMessage
	}
	return out
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, timer *metrics.JobTimer, err error) {
	code := string(apperrors.Normalize(err).Code)
	d := timer.Done(code)
	h.deps.Observability.RecordJobProcessed(ctx, TaskType, code)
	h.deps.Observability.RecordJobDuration(ctx, TaskType, d, code)
	h.errorHandler.HandleJobError(ctx, client, job, err)
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

// Execute runs the extraction flow without a job client.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

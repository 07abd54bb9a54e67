// Package store archives extraction reports in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/models"

	"github.com/jmoiron/sqlx"
)

// Schema creates the archive table. Rows are immutable; one row per extraction.
const Schema = `
CREATE TABLE IF NOT EXISTS shadow_query_reports (
    id                   BIGSERIAL PRIMARY KEY,
    conversation_id      TEXT        NOT NULL,
    extracted_at         TIMESTAMPTZ NOT NULL,
    total_shadow_queries INTEGER     NOT NULL,
    total_citations      INTEGER     NOT NULL,
    report               JSONB       NOT NULL,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (conversation_id, extracted_at)
);
CREATE INDEX IF NOT EXISTS idx_shadow_query_reports_conv
    ON shadow_query_reports (conversation_id, extracted_at DESC);`

const (
	insertReportQuery = `
		INSERT INTO shadow_query_reports
			(conversation_id, extracted_at, total_shadow_queries, total_citations, report)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id, extracted_at) DO NOTHING`

	latestReportQuery = `
		SELECT report FROM shadow_query_reports
		WHERE conversation_id = $1
		ORDER BY extracted_at DESC
		LIMIT 1`

	historyQuery = `
		SELECT conversation_id, extracted_at, total_shadow_queries, total_citations
		FROM shadow_query_reports
		WHERE conversation_id = $1
		ORDER BY extracted_at DESC
		LIMIT $2`
)

// ReportSummary is one archived extraction without its body.
type ReportSummary struct {
	ConversationID     string    `db:"conversation_id" json:"conversationId"`
	ExtractedAt        time.Time `db:"extracted_at" json:"extractedAt"`
	TotalShadowQueries int       `db:"total_shadow_queries" json:"totalShadowQueries"`
	TotalCitations     int       `db:"total_citations" json:"totalCitations"`
}

type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// EnsureSchema creates the archive table when it does not exist.
func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create report schema: %w", err)
	}
	return nil
}

// Save archives a report. Saving the same extraction twice is a no-op.
func (r *ReportRepository) Save(ctx context.Context, report *models.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return apperrors.NewReportPersistFailedError(fmt.Errorf("failed to marshal report: %w", err))
	}

	_, err = r.db.ExecContext(ctx, insertReportQuery,
		report.ConversationID,
		report.ExtractedAt,
		report.TotalShadowQueries,
		report.TotalCitations,
		body,
	)
	if err != nil {
		return apperrors.NewReportPersistFailedError(err)
	}
	return nil
}

// Latest returns the most recent archived report for a conversation.
func (r *ReportRepository) Latest(ctx context.Context, conversationID string) (*models.Report, error) {
	var body []byte
	err := r.db.GetContext(ctx, &body, latestReportQuery, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewReportNotFoundError(conversationID)
	}
	if err != nil {
		return nil, apperrors.NewReportPersistFailedError(err)
	}

	var report models.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, apperrors.NewReportPersistFailedError(fmt.Errorf("stored report is unreadable: %w", err))
	}
	return &report, nil
}

// History lists up to limit archived extractions, newest first.
func (r *ReportRepository) History(ctx context.Context, conversationID string, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	summaries := []ReportSummary{}
	if err := r.db.SelectContext(ctx, &summaries, historyQuery, conversationID, limit); err != nil {
		return nil, apperrors.NewReportPersistFailedError(err)
	}
	return summaries, nil
}

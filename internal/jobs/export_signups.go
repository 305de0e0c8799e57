package jobs

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/storage"
	"github.com/DukeRupert/waitlist/internal/worker"
)

// exportHeader is the first CSV row of every export.
var exportHeader = []string{
	"position",
	"email",
	"name",
	"referral_code",
	"referral_count",
	"tier",
	"points",
	"badges",
	"variant_id",
	"joined_at",
}

// ExportSignupsHandler writes a project's signups to CSV in storage.
type ExportSignupsHandler struct {
	queries repository.Querier
	storage storage.Storage
	logger  *slog.Logger
}

// NewExportSignupsHandler creates a new handler for signup export jobs.
func NewExportSignupsHandler(
	queries repository.Querier,
	storage storage.Storage,
	logger *slog.Logger,
) *ExportSignupsHandler {
	return &ExportSignupsHandler{
		queries: queries,
		storage: storage,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *ExportSignupsHandler) Type() string {
	return worker.JobTypeExportSignups
}

// Handle executes the export job.
func (h *ExportSignupsHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.ExportSignupsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.Permanentf("invalid payload: %w", err)
	}

	export, err := h.queries.GetExportByID(ctx, p.ExportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.Permanentf("export not found: %s", p.ExportID)
		}
		return fmt.Errorf("fetch export: %w", err)
	}
	if export.Status == domain.ExportCompleted {
		return nil
	}

	_, err = h.queries.GetProjectByIDAndAccountID(ctx, repository.GetProjectByIDAndAccountIDParams{
		ID:        export.ProjectID,
		AccountID: p.AccountID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.markFailed(ctx, export)
			return worker.Permanentf("project %s not owned by account %s", export.ProjectID, p.AccountID)
		}
		return fmt.Errorf("fetch project: %w", err)
	}

	signups, err := h.queries.ListAllSignupsByProjectID(ctx, export.ProjectID)
	if err != nil {
		return fmt.Errorf("list signups: %w", err)
	}

	var buf bytes.Buffer
	if err := writeSignupsCSV(&buf, signups); err != nil {
		return worker.Permanentf("write csv: %w", err)
	}
	size := buf.Len()

	key := storage.ExportKey(export.ProjectID, export.ID)
	err = h.storage.Put(ctx, key, &buf, storage.PutOptions{
		ContentType: storage.ContentTypeCSV,
		Overwrite:   true,
	})
	if err != nil {
		return fmt.Errorf("upload export: %w", err)
	}

	err = h.queries.CompleteExport(ctx, repository.CompleteExportParams{
		ID:         export.ID,
		Status:     domain.ExportCompleted,
		StorageKey: sql.NullString{String: key, Valid: true},
		RowCount:   int32(len(signups)),
	})
	if err != nil {
		return fmt.Errorf("complete export: %w", err)
	}

	h.logger.Info("Export completed",
		"export_id", export.ID,
		"project_id", export.ProjectID,
		"rows", len(signups),
		"size_bytes", size,
	)
	return nil
}

func (h *ExportSignupsHandler) markFailed(ctx context.Context, export repository.Export) {
	err := h.queries.CompleteExport(ctx, repository.CompleteExportParams{
		ID:     export.ID,
		Status: domain.ExportFailed,
	})
	if err != nil {
		h.logger.Error("Failed to mark export as failed", "export_id", export.ID, "error", err)
	}
}

// writeSignupsCSV writes the header and one row per signup in position order.
func writeSignupsCSV(buf *bytes.Buffer, signups []repository.Signup) error {
	w := csv.NewWriter(buf)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, s := range signups {
		variant := ""
		if s.VariantID.Valid {
			variant = s.VariantID.UUID.String()
		}
		row := []string{
			strconv.Itoa(int(s.Position)),
			s.Email,
			domain.NullStringValue(s.Name),
			s.ReferralCode,
			strconv.Itoa(int(s.ReferralCount)),
			s.Tier,
			strconv.Itoa(int(s.Points)),
			strings.Join(s.Badges, ";"),
			variant,
			s.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

var _ worker.JobHandler = (*ExportSignupsHandler)(nil)

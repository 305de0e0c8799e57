package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/storage"
	"github.com/DukeRupert/waitlist/internal/worker"
	"github.com/google/uuid"
)

// ExportURLExpiry is how long a download link for a finished export stays valid.
const ExportURLExpiry = time.Hour

// ExportService produces CSV snapshots of a project's signups.
type ExportService interface {
	// Request records a pending export and enqueues the job that writes it.
	Request(ctx context.Context, projectID, accountID uuid.UUID) (*domain.Export, error)

	// Get returns an export, with a download URL once it has completed.
	Get(ctx context.Context, id, accountID uuid.UUID) (*domain.Export, error)
}

type exportService struct {
	store   repository.Store
	storage storage.Storage
	logger  *slog.Logger
}

// NewExportService creates a new ExportService instance.
func NewExportService(store repository.Store, storage storage.Storage, logger *slog.Logger) ExportService {
	return &exportService{
		store:   store,
		storage: storage,
		logger:  logger,
	}
}

func (s *exportService) Request(ctx context.Context, projectID, accountID uuid.UUID) (*domain.Export, error) {
	const op = "ExportService.Request"

	_, err := s.store.GetProjectByIDAndAccountID(ctx, repository.GetProjectByIDAndAccountIDParams{
		ID:        projectID,
		AccountID: accountID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", projectID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}

	var row repository.Export
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		row, err = q.CreateExport(ctx, projectID)
		if err != nil {
			return err
		}
		_, err = worker.EnqueueExportSignups(ctx, q, row.ID, projectID, accountID)
		return err
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to request export")
	}

	s.logger.Info("export requested", "export_id", row.ID, "project_id", projectID)
	return exportFromRepo(row), nil
}

func (s *exportService) Get(ctx context.Context, id, accountID uuid.UUID) (*domain.Export, error) {
	const op = "ExportService.Get"

	row, err := s.store.GetExportByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "export", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve export")
	}

	_, err = s.store.GetProjectByIDAndAccountID(ctx, repository.GetProjectByIDAndAccountIDParams{
		ID:        row.ProjectID,
		AccountID: accountID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "export", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}

	export := exportFromRepo(row)
	if row.Status == domain.ExportCompleted && row.StorageKey.Valid {
		url, err := s.storage.URL(ctx, row.StorageKey.String, ExportURLExpiry)
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to generate download URL")
		}
		export.URL = url
	}
	return export, nil
}

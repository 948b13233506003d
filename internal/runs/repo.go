package runs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labaccess-backend/internal/repo"
	"github.com/angelmondragon/labaccess-backend/pkg/db/models"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	"github.com/angelmondragon/labaccess-backend/pkg/pagination"
)

// Repository exposes persistence helpers for submission runs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, run *models.SubmissionRun) error
	Complete(ctx context.Context, id uuid.UUID, update Completion) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SubmissionRun, error)
	ListRecent(ctx context.Context, params ListParams) (*Page, error)
}

// Completion is the terminal state written when a run ends.
type Completion struct {
	Status      enums.RunStatus
	Stage       enums.PipelineStage
	RowNumber   int
	ErrorCode   *string
	ErrorDetail *string
	FinishedAt  time.Time
}

// ListParams filters ListRecent. Zero values match everything.
type ListParams struct {
	Kind   enums.SubmissionKind
	Status enums.RunStatus
	pagination.Params
}

// Page is one newest-first slice of runs. NextCursor is empty on the last page.
type Page struct {
	Runs       []models.SubmissionRun
	NextCursor string
}

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("submission run not found")

type repositoryImpl struct {
	repo.Base
}

// NewRepository returns a runs repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(db)}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{Base: repo.NewBase(tx)}
}

func (r *repositoryImpl) Create(ctx context.Context, run *models.SubmissionRun) error {
	return r.DB(ctx).Create(run).Error
}

func (r *repositoryImpl) Complete(ctx context.Context, id uuid.UUID, update Completion) error {
	result := r.DB(ctx).
		Model(&models.SubmissionRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       update.Status,
			"stage":        update.Stage,
			"row_number":   update.RowNumber,
			"error_code":   update.ErrorCode,
			"error_detail": update.ErrorDetail,
			"finished_at":  update.FinishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.SubmissionRun, error) {
	var run models.SubmissionRun
	err := r.DB(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repositoryImpl) ListRecent(ctx context.Context, params ListParams) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.DB(ctx).Model(&models.SubmissionRun{})
	if params.Kind != "" {
		query = query.Where("kind = ?", params.Kind)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if cursor != nil {
		query = query.Where("(started_at < ?) OR (started_at = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}

	var out []models.SubmissionRun
	err = query.Order("started_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&out).Error
	if err != nil {
		return nil, err
	}

	page := &Page{Runs: out}
	if len(out) > limit {
		page.Runs = out[:limit]
		last := page.Runs[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{At: last.StartedAt, ID: last.ID})
	}
	return page, nil
}

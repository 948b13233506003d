// Package runs keeps the audit trail of submission pipeline invocations.
package runs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/pkg/db/models"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

const maxErrorDetail = 1024

// Recorder adapts Repository to the pipeline's run recording port.
type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

var _ pipeline.RunRecorder = (*Recorder)(nil)

func (r *Recorder) Start(ctx context.Context, sub pipeline.Submission, startedAt time.Time) (uuid.UUID, error) {
	run := &models.SubmissionRun{
		ID:        uuid.New(),
		EventID:   sub.EventID,
		Source:    sub.Source,
		Kind:      sub.Kind,
		SheetName: sub.Sheet,
		RowNumber: sub.Row,
		Status:    enums.RunStatusRunning,
		Stage:     enums.PipelineStageNew,
		StartedAt: startedAt.UTC(),
	}
	if err := r.repo.Create(ctx, run); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create submission run")
	}
	return run.ID, nil
}

func (r *Recorder) Finish(ctx context.Context, res *pipeline.Result, runErr error, finishedAt time.Time) error {
	update := Completion{
		Status:     StatusFor(runErr),
		Stage:      res.Stage,
		RowNumber:  res.Row,
		FinishedAt: finishedAt.UTC(),
	}
	if runErr != nil {
		code := string(pkgerrors.CodeOf(runErr))
		detail := runErr.Error()
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		update.ErrorCode = &code
		update.ErrorDetail = &detail
	}
	if err := r.repo.Complete(ctx, res.RunID, update); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete submission run")
	}
	return nil
}

// StatusFor maps a run error onto the stored status. Rows that were already
// processed are skipped rather than failed.
func StatusFor(runErr error) enums.RunStatus {
	switch {
	case runErr == nil:
		return enums.RunStatusSucceeded
	case pkgerrors.Is(runErr, pkgerrors.CodeAlreadyProcessed):
		return enums.RunStatusSkipped
	default:
		return enums.RunStatusFailed
	}
}

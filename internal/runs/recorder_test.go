package runs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/pkg/db/models"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.SubmissionRun{}))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestRecorderStartAndFinish(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	recorder := NewRecorder(repo)
	ctx := context.Background()
	started := time.Date(2024, time.March, 1, 16, 0, 0, 0, time.UTC)

	id, err := recorder.Start(ctx, pipeline.Submission{
		Kind:    enums.SubmissionKindBasketAssignment,
		Sheet:   "Basket Assignment",
		EventID: "evt-9",
		Source:  enums.TriggerSourceWebhook,
	}, started)
	require.NoError(t, err)

	run, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStatusRunning, run.Status)
	assert.Equal(t, enums.PipelineStageNew, run.Stage)
	assert.Equal(t, "evt-9", run.EventID)

	res := &pipeline.Result{RunID: id, Row: 7, Stage: enums.PipelineStageAcknowledged}
	require.NoError(t, recorder.Finish(ctx, res, nil, started.Add(3*time.Second)))

	run, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStatusSucceeded, run.Status)
	assert.Equal(t, enums.PipelineStageAcknowledged, run.Stage)
	assert.Equal(t, 7, run.RowNumber)
	assert.Nil(t, run.ErrorCode)
	require.NotNil(t, run.FinishedAt)
}

func TestRecorderFinishStoresErrorCode(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	recorder := NewRecorder(repo)
	ctx := context.Background()

	id, err := recorder.Start(ctx, pipeline.Submission{Kind: enums.SubmissionKindUserRegistration, Sheet: "s"}, time.Now())
	require.NoError(t, err)

	runErr := pkgerrors.Wrap(pkgerrors.CodeExternalService, errors.New("smtp down"), "send email")
	require.NoError(t, recorder.Finish(ctx, &pipeline.Result{RunID: id, Stage: enums.PipelineStageExtracted}, runErr, time.Now()))

	run, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorCode)
	assert.Equal(t, string(pkgerrors.CodeExternalService), *run.ErrorCode)
	require.NotNil(t, run.ErrorDetail)
	assert.Contains(t, *run.ErrorDetail, "send email")
}

func TestRecorderFinishUnknownRun(t *testing.T) {
	recorder := NewRecorder(NewRepository(newTestDB(t)))
	err := recorder.Finish(context.Background(), &pipeline.Result{RunID: uuid.New()}, nil, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, enums.RunStatusSucceeded, StatusFor(nil))
	assert.Equal(t, enums.RunStatusSkipped, StatusFor(pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "done")))
	assert.Equal(t, enums.RunStatusFailed, StatusFor(errors.New("boom")))
}

func TestListRecentFilters(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []enums.RunStatus{enums.RunStatusSucceeded, enums.RunStatusFailed, enums.RunStatusSucceeded} {
		require.NoError(t, repo.Create(ctx, &models.SubmissionRun{
			ID:        uuid.New(),
			EventID:   "e",
			Source:    enums.TriggerSourcePubSub,
			Kind:      enums.SubmissionKindUserRegistration,
			SheetName: "s",
			RowNumber: i + 2,
			Status:    status,
			Stage:     enums.PipelineStageNew,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := repo.ListRecent(ctx, ListParams{Status: enums.RunStatusSucceeded})
	require.NoError(t, err)
	require.Len(t, got.Runs, 2)
	assert.Equal(t, 4, got.Runs[0].RowNumber)
	assert.Empty(t, got.NextCursor)

	got, err = repo.ListRecent(ctx, ListParams{Kind: enums.SubmissionKindBasketAssignment})
	require.NoError(t, err)
	assert.Empty(t, got.Runs)
}

func TestListRecentPages(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.SubmissionRun{
			ID:        uuid.New(),
			EventID:   "e",
			Source:    enums.TriggerSourcePoller,
			Kind:      enums.SubmissionKindBasketAssignment,
			SheetName: "s",
			RowNumber: i + 2,
			Status:    enums.RunStatusSucceeded,
			Stage:     enums.PipelineStageAcknowledged,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	first, err := repo.ListRecent(ctx, ListParams{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Runs, 2)
	assert.Equal(t, []int{4, 3}, []int{first.Runs[0].RowNumber, first.Runs[1].RowNumber})
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.ListRecent(ctx, ListParams{Params: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Runs, 1)
	assert.Equal(t, 2, second.Runs[0].RowNumber)
	assert.Empty(t, second.NextCursor)

	_, err = repo.ListRecent(ctx, ListParams{Params: pagination.Params{Cursor: "%%%"}})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

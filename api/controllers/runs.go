package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/api/responses"
	"github.com/angelmondragon/labaccess-backend/api/validators"
	"github.com/angelmondragon/labaccess-backend/internal/runs"
	"github.com/angelmondragon/labaccess-backend/pkg/db/models"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
	"github.com/angelmondragon/labaccess-backend/pkg/pagination"
)

type runsReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.SubmissionRun, error)
	ListRecent(ctx context.Context, params runs.ListParams) (*runs.Page, error)
}

type runResponse struct {
	ID          uuid.UUID  `json:"id"`
	EventID     string     `json:"eventId"`
	Source      string     `json:"source"`
	Kind        string     `json:"kind"`
	Sheet       string     `json:"sheet"`
	Row         int        `json:"row"`
	Status      string     `json:"status"`
	Stage       string     `json:"stage"`
	ErrorCode   *string    `json:"errorCode,omitempty"`
	ErrorDetail *string    `json:"errorDetail,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

type runListResponse struct {
	Runs       []runResponse `json:"runs"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

func toRunResponse(run models.SubmissionRun) runResponse {
	return runResponse{
		ID:          run.ID,
		EventID:     run.EventID,
		Source:      string(run.Source),
		Kind:        string(run.Kind),
		Sheet:       run.SheetName,
		Row:         run.RowNumber,
		Status:      string(run.Status),
		Stage:       string(run.Stage),
		ErrorCode:   run.ErrorCode,
		ErrorDetail: run.ErrorDetail,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
}

// RunsList returns recent pipeline runs, newest first. Pass nextCursor back as
// ?cursor= for the following page.
func RunsList(repo runsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params := runs.ListParams{Params: pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		}}
		if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
			kind, err := enums.ParseSubmissionKind(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind").
					WithDetails(map[string]any{"field": "kind"}))
				return
			}
			params.Kind = kind
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseRunStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			params.Status = status
		}

		page, err := repo.ListRecent(ctx, params)
		if err != nil {
			if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list runs")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := runListResponse{Runs: make([]runResponse, 0, len(page.Runs)), NextCursor: page.NextCursor}
		for _, run := range page.Runs {
			out.Runs = append(out.Runs, toRunResponse(run))
		}
		responses.WriteSuccess(w, out)
	}
}

// RunsGet returns a single run by id.
func RunsGet(repo runsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := uuid.Parse(chi.URLParam(r, "runID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid run id").
				WithDetails(map[string]any{"field": "runID"}))
			return
		}
		run, err := repo.FindByID(ctx, id)
		if errors.Is(err, runs.ErrNotFound) {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "run not found"))
			return
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load run"))
			return
		}
		responses.WriteSuccess(w, toRunResponse(*run))
	}
}

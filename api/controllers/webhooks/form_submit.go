package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/api/responses"
	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/internal/trigger"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
)

type submissionHandler interface {
	Handle(ctx context.Context, source enums.TriggerSource, event trigger.Event) (*pipeline.Result, error)
}

type formSubmitResponse struct {
	RunID     string `json:"runId,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	Row       int    `json:"row,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// FormSubmit runs the pipeline for a signed form-submit notification. The
// signature is checked by middleware before this handler runs.
func FormSubmit(handler submissionHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if handler == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "submission handler unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		event, err := trigger.Decode(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		res, err := handler.Handle(ctx, enums.TriggerSourceWebhook, event)
		if errors.Is(err, trigger.ErrDuplicate) {
			responses.WriteSuccess(w, formSubmitResponse{Sheet: event.Sheet, Row: event.Row, Duplicate: true})
			return
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := formSubmitResponse{Sheet: event.Sheet, Row: event.Row}
		if res != nil {
			if res.RunID != uuid.Nil {
				resp.RunID = res.RunID.String()
			}
			resp.Kind = string(res.Kind)
			resp.Sheet = res.Sheet
			resp.Row = res.Row
			resp.Stage = string(res.Stage)
		}
		responses.WriteSuccess(w, resp)
	}
}

package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
	"github.com/angelmondragon/labaccess-backend/pkg/metrics"
)

const consumerName = "submissions"

var (
	// ErrDuplicate is returned when an event id was already handled.
	ErrDuplicate = pkgerrors.New(pkgerrors.CodeIdempotency, "submission event already handled")

	errDedupeUnavailable = errors.New("idempotency store unavailable")
)

type processor interface {
	Process(ctx context.Context, sub pipeline.Submission) (*pipeline.Result, error)
	KindForSheet(sheet string) (enums.SubmissionKind, error)
}

type deduper interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// Handler runs a decoded event through the pipeline at most once per event id.
type Handler struct {
	pipeline processor
	dedupe   deduper
	metrics  *metrics.PipelineMetrics
	logg     *logger.Logger
}

type HandlerParams struct {
	Pipeline processor
	// Dedupe is optional; without it every delivery runs.
	Dedupe  deduper
	Metrics *metrics.PipelineMetrics
	Logger  *logger.Logger
}

func NewHandler(params HandlerParams) (*Handler, error) {
	if params.Pipeline == nil {
		return nil, fmt.Errorf("pipeline required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Handler{
		pipeline: params.Pipeline,
		dedupe:   params.Dedupe,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Handle resolves the submission kind and runs the pipeline. Events without
// an id are never deduplicated. A failed run releases its dedupe mark so the
// same event can be sent again once the cause is fixed.
func (h *Handler) Handle(ctx context.Context, source enums.TriggerSource, event Event) (*pipeline.Result, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	kind, err := h.pipeline.KindForSheet(event.Sheet)
	if err != nil {
		return nil, err
	}

	logCtx := h.logg.WithSubmission(ctx, string(kind), event.Sheet, event.Row, event.EventID)
	logCtx = h.logg.WithField(logCtx, "source", string(source))

	marked := false
	if h.dedupe != nil && event.EventID != "" {
		already, err := h.dedupe.CheckAndMarkProcessed(ctx, consumerName, event.EventID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(errDedupeUnavailable, err), "idempotency check failed")
		}
		if already {
			h.metrics.IncDuplicate(string(source))
			h.logg.Info(logCtx, "submission event already handled")
			return nil, ErrDuplicate
		}
		marked = true
	}

	res, err := h.pipeline.Process(ctx, event.submission(kind, source))
	if err != nil && marked && pkgerrors.CodeOf(err) != pkgerrors.CodeAlreadyProcessed {
		if delErr := h.dedupe.Delete(ctx, consumerName, event.EventID); delErr != nil {
			h.logg.Warn(h.logg.WithField(logCtx, "error", delErr.Error()), "failed to release idempotency mark")
		}
	}
	return res, err
}

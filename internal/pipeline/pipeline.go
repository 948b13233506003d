// Package pipeline runs a form submission row through extraction, side
// effects, write-back, formatting and acknowledgement.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/internal/messages"
	"github.com/angelmondragon/labaccess-backend/internal/records"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
	"github.com/angelmondragon/labaccess-backend/pkg/metrics"
)

const (
	// DefaultLinkBase is the institutional directory lookup for an EID.
	DefaultLinkBase = "https://utdirect.utexas.edu/webapps/eidlisting/eid_details?eid="

	eventDuration       = 10 * time.Minute
	eventColorGray      = "8"
	eventReminderMinute = 15
	eventTitlePrefix    = "Lab Access: Create Account | User: "

	timestampColumn  = 1
	userEIDColumn    = 8
	basketEIDColumn  = 2
	defaultBadgeSize = 255
)

// Submission identifies the sheet row a run operates on.
type Submission struct {
	Kind    enums.SubmissionKind
	Sheet   string
	Row     int
	FormID  string
	EventID string
	Source  enums.TriggerSource
}

// Result reports how far a run progressed and what it produced.
type Result struct {
	RunID  uuid.UUID
	Kind   enums.SubmissionKind
	Sheet  string
	Row    int
	Stage  enums.PipelineStage
	Marker string
	User   *records.UserRecord
	Basket *records.BasketRecord
	Badge  *messages.Attachment
}

// Params wires the pipeline collaborators. Forms, Runs, Metrics and Lock are optional.
type Params struct {
	Logger      *logger.Logger
	Sheets      SheetStore
	Calendar    Calendar
	Forms       FormStore
	Notifier    Notifier
	Badges      BadgeGenerator
	Runs        RunRecorder
	Metrics     *metrics.PipelineMetrics
	Lock        Locker
	Location    *time.Location
	UserSheet   string
	BasketSheet string
	FormIDs     map[string]string
	LinkBase    string
	BadgeSize   int
	Now         func() time.Time
}

// Pipeline processes one submission at a time.
type Pipeline struct {
	logg        *logger.Logger
	sheets      SheetStore
	calendar    Calendar
	forms       FormStore
	notifier    Notifier
	badges      BadgeGenerator
	runs        RunRecorder
	metrics     *metrics.PipelineMetrics
	lock        Locker
	loc         *time.Location
	userSheet   string
	basketSheet string
	formIDs     map[string]string
	linkBase    string
	badgeSize   int
	now         func() time.Time
}

// New validates params and builds a Pipeline.
func New(params Params) (*Pipeline, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sheets == nil {
		return nil, fmt.Errorf("sheet store required")
	}
	if params.Calendar == nil {
		return nil, fmt.Errorf("calendar required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Badges == nil {
		return nil, fmt.Errorf("badge generator required")
	}
	if params.UserSheet == "" || params.BasketSheet == "" {
		return nil, fmt.Errorf("user and basket sheet names required")
	}
	lock := params.Lock
	if lock == nil {
		lock = NewLocalLock()
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	linkBase := params.LinkBase
	if linkBase == "" {
		linkBase = DefaultLinkBase
	}
	size := params.BadgeSize
	if size <= 0 {
		size = defaultBadgeSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	formIDs := make(map[string]string, len(params.FormIDs))
	for sheet, id := range params.FormIDs {
		formIDs[sheet] = id
	}
	return &Pipeline{
		logg:        params.Logger,
		sheets:      params.Sheets,
		calendar:    params.Calendar,
		forms:       params.Forms,
		notifier:    params.Notifier,
		badges:      params.Badges,
		runs:        params.Runs,
		metrics:     params.Metrics,
		lock:        lock,
		loc:         loc,
		userSheet:   params.UserSheet,
		basketSheet: params.BasketSheet,
		formIDs:     formIDs,
		linkBase:    linkBase,
		badgeSize:   size,
		now:         now,
	}, nil
}

// KindForSheet resolves the submission kind fed by sheet.
func (p *Pipeline) KindForSheet(sheet string) (enums.SubmissionKind, error) {
	switch sheet {
	case p.userSheet:
		return enums.SubmissionKindUserRegistration, nil
	case p.basketSheet:
		return enums.SubmissionKindBasketAssignment, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown submission sheet").
			WithDetails(map[string]any{"sheet": sheet})
	}
}

// SheetFor returns the sheet name backing kind.
func (p *Pipeline) SheetFor(kind enums.SubmissionKind) string {
	if kind == enums.SubmissionKindBasketAssignment {
		return p.basketSheet
	}
	return p.userSheet
}

// Sheets lists the submission sheets in processing order.
func (p *Pipeline) Sheets() []string {
	return []string{p.userSheet, p.basketSheet}
}

// Process runs sub through every stage. On failure the returned Result
// carries the last stage that completed.
func (p *Pipeline) Process(ctx context.Context, sub Submission) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sub, err := p.normalize(sub)
	if err != nil {
		return nil, err
	}

	unlock, err := p.lock.Lock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire pipeline lock")
	}
	defer unlock()

	ctx = p.logg.WithSubmission(ctx, string(sub.Kind), sub.Sheet, sub.Row, sub.EventID)
	ctx = p.logg.WithField(ctx, "source", string(sub.Source))
	res := &Result{Kind: sub.Kind, Sheet: sub.Sheet, Row: sub.Row, Stage: enums.PipelineStageNew}

	start := p.now()
	res.RunID = p.startRun(ctx, sub, start)
	p.logg.Info(ctx, "submission run starting")

	switch sub.Kind {
	case enums.SubmissionKindUserRegistration:
		err = p.processUser(ctx, sub, res)
	default:
		err = p.processBasket(ctx, sub, res)
	}

	duration := p.now().Sub(start)
	p.metrics.ObserveDuration(string(sub.Kind), duration)
	p.finishRun(ctx, res, err)

	ctx = p.logg.WithFields(ctx, map[string]any{
		"stage":       string(res.Stage),
		"duration_ms": duration.Milliseconds(),
		"sheet_row":   res.Row,
	})
	if err != nil {
		p.metrics.IncFailure(string(sub.Kind), string(pkgerrors.CodeOf(err)))
		if pkgerrors.Is(err, pkgerrors.CodeAlreadyProcessed) {
			p.logg.Warn(ctx, "row already processed; nothing sent")
		} else {
			p.logg.Error(ctx, "submission run failed", err)
		}
		return res, err
	}
	p.metrics.IncSuccess(string(sub.Kind))
	p.logg.Info(ctx, "submission run complete")
	return res, nil
}

func (p *Pipeline) normalize(sub Submission) (Submission, error) {
	if sub.Row < 0 {
		return sub, pkgerrors.New(pkgerrors.CodeValidation, "row must not be negative")
	}
	if sub.Sheet == "" && sub.Kind != "" {
		sub.Sheet = p.SheetFor(sub.Kind)
	}
	kind, err := p.KindForSheet(sub.Sheet)
	if err != nil {
		return sub, err
	}
	if sub.Kind != "" && sub.Kind != kind {
		return sub, pkgerrors.New(pkgerrors.CodeValidation, "submission kind does not match sheet").
			WithDetails(map[string]any{"sheet": sub.Sheet, "kind": string(sub.Kind)})
	}
	sub.Kind = kind
	if sub.FormID == "" {
		sub.FormID = p.formIDs[sub.Sheet]
	}
	if sub.Source == "" {
		sub.Source = enums.TriggerSourceManual
	}
	return sub, nil
}

func (p *Pipeline) processUser(ctx context.Context, sub Submission, res *Result) error {
	if err := p.sheets.SortRows(ctx, sub.Sheet, timestampColumn, true); err != nil {
		return externalError(err, "sort sheet by timestamp")
	}
	row, raw, err := p.readRow(ctx, sub.Sheet, sub.Row)
	if err != nil {
		return err
	}
	res.Row = row

	ext, err := records.ExtractUser(raw, p.loc)
	if err != nil {
		return err
	}
	user := ext.Record
	res.User = user
	res.Stage = enums.PipelineStageExtracted

	description, err := p.notifier.TextBody(user)
	if err != nil {
		return err
	}
	_, err = p.calendar.CreateEvent(ctx, Event{
		Title:                eventTitlePrefix + user.Name,
		Description:          description,
		Start:                user.Activation,
		End:                  user.Activation.Add(eventDuration),
		ColorID:              eventColorGray,
		PopupReminderMinutes: eventReminderMinute,
	})
	if err != nil {
		return externalError(err, "create calendar event")
	}
	if err := p.notifier.SendText(ctx, user); err != nil {
		return err
	}
	if err := p.notifier.SendConfirmationEmail(ctx, user); err != nil {
		return err
	}
	res.Stage = enums.PipelineStageSideEffectsComplete

	return p.finalize(ctx, sub, res, row, userEIDColumn, user.EID, ext.WriteBack, UserSheetProfile(), false)
}

func (p *Pipeline) processBasket(ctx context.Context, sub Submission, res *Result) error {
	row, raw, err := p.readRow(ctx, sub.Sheet, sub.Row)
	if err != nil {
		return err
	}
	res.Row = row

	ext, err := records.ExtractBasket(raw, p.loc)
	if err != nil {
		return err
	}
	basket := ext.Record
	res.Basket = basket
	res.Stage = enums.PipelineStageExtracted

	var badge *messages.Attachment
	if basket.Status == enums.BasketStatusAssign {
		badge, err = p.badges.Generate(ctx, ext.Badge, p.badgeSize)
		if err != nil {
			return err
		}
		res.Badge = badge
	}
	if err := p.notifier.SendBasketAssignmentEmail(ctx, basket, badge); err != nil {
		return err
	}
	res.Stage = enums.PipelineStageSideEffectsComplete

	return p.finalize(ctx, sub, res, row, basketEIDColumn, basket.EID, ext.WriteBack, BasketSheetProfile(), true)
}

// finalize links the EID cell, writes the normalized row with its marker,
// reformats the sheet and clears the originating form.
func (p *Pipeline) finalize(ctx context.Context, sub Submission, res *Result, row, eidColumn int, eid string, writeBack []string, profile FormatProfile, sortAfter bool) error {
	link := Link{
		Row:    row,
		Column: eidColumn,
		Text:   eid,
		URL:    p.linkBase + eid,
		Style:  DefaultTextStyle,
	}
	if err := p.sheets.SetLink(ctx, sub.Sheet, link); err != nil {
		return externalError(err, "link eid cell")
	}
	if err := p.sheets.WriteRow(ctx, sub.Sheet, row, writeBack); err != nil {
		return externalError(err, "write back row")
	}
	res.Marker = writeBack[records.MarkerColumn]
	res.Stage = enums.PipelineStageWrittenBack

	lastRow, err := p.sheets.LastRow(ctx, sub.Sheet)
	if err != nil {
		return externalError(err, "find last row")
	}
	if err := p.sheets.ApplyFormat(ctx, sub.Sheet, profile, lastRow); err != nil {
		return externalError(err, "format sheet")
	}
	if sortAfter {
		if err := p.sheets.SortRows(ctx, sub.Sheet, timestampColumn, true); err != nil {
			return externalError(err, "sort sheet by timestamp")
		}
	}
	res.Stage = enums.PipelineStageFormatted

	if p.forms == nil || sub.FormID == "" {
		p.logg.Warn(ctx, "no form configured for sheet; responses not cleared")
		return nil
	}
	if err := p.forms.ClearResponses(ctx, sub.FormID); err != nil {
		return externalError(err, "clear form responses")
	}
	res.Stage = enums.PipelineStageAcknowledged
	return nil
}

func (p *Pipeline) readRow(ctx context.Context, sheet string, row int) (int, []string, error) {
	if row == 0 {
		last, err := p.sheets.LastRow(ctx, sheet)
		if err != nil {
			return 0, nil, externalError(err, "find last row")
		}
		row = last
	}
	if row < 2 {
		return row, nil, pkgerrors.New(pkgerrors.CodeNotFound, "sheet has no submission rows").
			WithDetails(map[string]any{"sheet": sheet, "row": row})
	}
	raw, err := p.sheets.ReadRow(ctx, sheet, row)
	if err != nil {
		return row, nil, externalError(err, "read row")
	}
	return row, raw, nil
}

func (p *Pipeline) startRun(ctx context.Context, sub Submission, at time.Time) uuid.UUID {
	if p.runs == nil {
		return uuid.Nil
	}
	id, err := p.runs.Start(ctx, sub, at)
	if err != nil {
		p.logg.Error(ctx, "failed to record run start", err)
		return uuid.Nil
	}
	return id
}

func (p *Pipeline) finishRun(ctx context.Context, res *Result, runErr error) {
	if p.runs == nil || res.RunID == uuid.Nil {
		return
	}
	if err := p.runs.Finish(ctx, res, runErr, p.now()); err != nil {
		p.logg.Error(ctx, "failed to record run result", err)
	}
}

// externalError keeps coded errors from adapters and wraps the rest.
func externalError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeExternalService, err, msg)
}

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/labaccess-backend/internal/records"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
)

const (
	defaultPollInterval = time.Minute
	pollConsumer        = "poller"
)

// Processor is the part of Pipeline the poller drives.
type Processor interface {
	Process(ctx context.Context, sub Submission) (*Result, error)
	Sheets() []string
}

// PollDeduper records which rows the poller already attempted across replicas
// and restarts.
type PollDeduper interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

type PollerParams struct {
	Logger   *logger.Logger
	Pipeline Processor
	Sheets   SheetStore
	Interval time.Duration
	// Dedupe is optional; without it attempts are only remembered in memory.
	Dedupe PollDeduper
}

// Poller checks the last row of each submission sheet on a fixed cadence and
// processes it when its marker is still empty. It covers triggers that never
// arrived. Each row is attempted at most once: a failed run leaves the row
// pending for a manual reprocess.
type Poller struct {
	logg     *logger.Logger
	pipeline Processor
	sheets   SheetStore
	interval time.Duration
	dedupe   PollDeduper

	mu        sync.Mutex
	attempted map[string]struct{}
}

func NewPoller(params PollerParams) (*Poller, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Pipeline == nil {
		return nil, fmt.Errorf("pipeline required")
	}
	if params.Sheets == nil {
		return nil, fmt.Errorf("sheet store required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		logg:      params.Logger,
		pipeline:  params.Pipeline,
		sheets:    params.Sheets,
		interval:  interval,
		dedupe:    params.Dedupe,
		attempted: map[string]struct{}{},
	}, nil
}

// Run polls until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p.runCycle(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logg.Info(ctx, "poller context canceled")
			return ctx.Err()
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

func (p *Poller) runCycle(ctx context.Context) {
	for _, sheet := range p.pipeline.Sheets() {
		sheetCtx := p.logg.WithFields(ctx, map[string]any{"sheet": sheet, "event": "pipeline.poll"})
		if err := p.pollSheet(sheetCtx, sheet); err != nil {
			p.logg.Error(sheetCtx, "poll failed", err)
		}
	}
}

func (p *Poller) pollSheet(ctx context.Context, sheet string) error {
	last, err := p.sheets.LastRow(ctx, sheet)
	if err != nil {
		return fmt.Errorf("last row: %w", err)
	}
	if last < 2 {
		return nil
	}
	raw, err := p.sheets.ReadRow(ctx, sheet, last)
	if err != nil {
		return fmt.Errorf("read row %d: %w", last, err)
	}
	values, status := records.InspectRow(raw)
	if status == enums.RowStatusProcessed {
		return nil
	}
	eventID := pollEventID(sheet, last, values[0])
	claimed, err := p.claim(ctx, eventID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	p.logg.Info(ctx, "pending row found")
	_, err = p.pipeline.Process(ctx, Submission{
		Sheet:   sheet,
		Row:     last,
		EventID: eventID,
		Source:  enums.TriggerSourcePoller,
	})
	if pkgerrors.Is(err, pkgerrors.CodeAlreadyProcessed) {
		return nil
	}
	if err != nil {
		p.logg.Warn(p.logg.WithFields(ctx, map[string]any{"row": last, "event_id": eventID}),
			"poll run failed; row left pending for manual reprocess")
	}
	return err
}

// claim reports whether eventID may run now. The mark is kept whatever the
// outcome of the run.
func (p *Poller) claim(ctx context.Context, eventID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.attempted[eventID]; ok {
		return false, nil
	}
	if p.dedupe != nil {
		already, err := p.dedupe.CheckAndMarkProcessed(ctx, pollConsumer, eventID)
		if err != nil {
			return false, fmt.Errorf("poll dedupe: %w", err)
		}
		if already {
			p.attempted[eventID] = struct{}{}
			return false, nil
		}
	}
	p.attempted[eventID] = struct{}{}
	return true, nil
}

func pollEventID(sheet string, row int, timestamp string) string {
	return fmt.Sprintf("poll:%s:%d:%s", strings.ReplaceAll(sheet, " ", "_"), row, strings.TrimSpace(timestamp))
}

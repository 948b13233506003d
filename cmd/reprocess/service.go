package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/internal/records"
	"github.com/angelmondragon/labaccess-backend/internal/trigger"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

const defaultPublishTimeout = 10 * time.Second

type processor interface {
	Process(ctx context.Context, sub pipeline.Submission) (*pipeline.Result, error)
	KindForSheet(sheet string) (enums.SubmissionKind, error)
}

type rowReader interface {
	LastRow(ctx context.Context, sheet string) (int, error)
	ReadRow(ctx context.Context, sheet string, row int) ([]string, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

// target resolves the row to act on. Row 0 means the sheet's last row.
func target(ctx context.Context, sheets rowReader, sheet string, row int) (int, error) {
	if row > 0 {
		return row, nil
	}
	last, err := sheets.LastRow(ctx, sheet)
	if err != nil {
		return 0, err
	}
	if last < 2 {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "sheet has no submissions").
			WithDetails(map[string]any{"sheet": sheet})
	}
	return last, nil
}

// runLocal processes the row in this process. Manual runs skip event dedupe.
func runLocal(ctx context.Context, p processor, sheet string, row int, formID string) (*pipeline.Result, error) {
	kind, err := p.KindForSheet(sheet)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, pipeline.Submission{
		Kind:   kind,
		Sheet:  sheet,
		Row:    row,
		FormID: formID,
		Source: enums.TriggerSourceManual,
	})
}

// publish enqueues the row for the worker and returns the server message ID.
func publish(ctx context.Context, pub publisher, event trigger.Event) (string, error) {
	if err := event.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_id": event.EventID,
			"sheet":    event.Sheet,
			"source":   string(enums.TriggerSourceManual),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return "", fmt.Errorf("publisher returned nil result")
	}
	return result.Get(publishCtx)
}

// exportLayout is how the activation field of exported records is written.
const exportLayout = "2006-01-02 15:04:05"

// activationLayouts covers markers written by this service (RFC 3339) and by
// the earlier script (JavaScript Date.toJSON and Date.toString).
var activationLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	exportLayout,
}

type skippedRow struct {
	Row    int
	Reason string
}

type exportSummary struct {
	Exported int
	Skipped  []skippedRow
}

// exportUsers writes every processed registration marker as a JSON array.
// Markers are kept as decoded so fields of older records survive; activation
// is rewritten as UTC "YYYY-MM-DD hh:mm:ss". Markers that are not JSON objects
// are reported in the summary.
func exportUsers(ctx context.Context, sheets rowReader, sheet string, w io.Writer) (*exportSummary, error) {
	last, err := sheets.LastRow(ctx, sheet)
	if err != nil {
		return nil, err
	}
	summary := &exportSummary{}
	users := make([]map[string]any, 0, max(last-1, 0))
	for row := 2; row <= last; row++ {
		values, err := sheets.ReadRow(ctx, sheet, row)
		if err != nil {
			return nil, err
		}
		padded, status := records.InspectRow(values)
		if status != enums.RowStatusProcessed {
			continue
		}
		user, err := decodeMarker(padded[records.MarkerColumn])
		if err != nil {
			summary.Skipped = append(summary.Skipped, skippedRow{Row: row, Reason: err.Error()})
			continue
		}
		users = append(users, user)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(users); err != nil {
		return nil, err
	}
	summary.Exported = len(users)
	return summary, nil
}

func decodeMarker(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.UseNumber()
	var user map[string]any
	if err := dec.Decode(&user); err != nil {
		return nil, fmt.Errorf("marker is not a JSON record: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("marker is not a JSON record")
	}
	if activation, ok := user["activation"].(string); ok {
		if ts, ok := parseActivation(activation); ok {
			user["activation"] = ts.UTC().Format(exportLayout)
		}
	}
	return user, nil
}

func parseActivation(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	// Date.toString appends the zone name in parentheses.
	if i := strings.Index(value, " ("); i > 0 {
		value = value[:i]
	}
	for _, layout := range activationLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

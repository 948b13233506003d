package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/internal/messages"
	"github.com/angelmondragon/labaccess-backend/internal/records"
)

// SheetStore is the spreadsheet backing both submission forms. Rows and
// columns are 1-based; row 1 is the header.
type SheetStore interface {
	LastRow(ctx context.Context, sheet string) (int, error)
	ReadRow(ctx context.Context, sheet string, row int) ([]string, error)
	WriteRow(ctx context.Context, sheet string, row int, values []string) error
	SetLink(ctx context.Context, sheet string, link Link) error
	SortRows(ctx context.Context, sheet string, column int, ascending bool) error
	ApplyFormat(ctx context.Context, sheet string, profile FormatProfile, lastRow int) error
}

// Calendar books account-creation reminders.
type Calendar interface {
	CreateEvent(ctx context.Context, event Event) (string, error)
}

// FormStore acknowledges a submission by clearing the form's stored responses.
type FormStore interface {
	ClearResponses(ctx context.Context, formID string) error
}

// Notifier sends the user and basket notifications.
type Notifier interface {
	TextBody(user *records.UserRecord) (string, error)
	SendText(ctx context.Context, user *records.UserRecord) error
	SendConfirmationEmail(ctx context.Context, user *records.UserRecord) error
	SendBasketAssignmentEmail(ctx context.Context, basket *records.BasketRecord, badge *messages.Attachment) error
}

// BadgeGenerator renders and stores a basket badge.
type BadgeGenerator interface {
	Generate(ctx context.Context, data records.BadgeData, size int) (*messages.Attachment, error)
}

// RunRecorder keeps an audit trail of pipeline invocations.
type RunRecorder interface {
	Start(ctx context.Context, sub Submission, startedAt time.Time) (uuid.UUID, error)
	Finish(ctx context.Context, res *Result, runErr error, finishedAt time.Time) error
}

// Locker serializes pipeline runs.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Event is a calendar entry.
type Event struct {
	Title                string
	Description          string
	Start                time.Time
	End                  time.Time
	ColorID              string
	PopupReminderMinutes int
}

// Link decorates a single cell with a hyperlink.
type Link struct {
	Row    int
	Column int
	Text   string
	URL    string
	Style  TextStyle
}

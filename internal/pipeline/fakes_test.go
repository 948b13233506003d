package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/internal/messages"
	"github.com/angelmondragon/labaccess-backend/internal/records"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

const (
	testUserSheet   = "New User Registration"
	testBasketSheet = "Basket Assignment"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeSheets struct {
	log      *callLog
	rows     map[string][][]string
	links    []Link
	formats  map[string]int
	writeErr error
}

func newFakeSheets(log *callLog) *fakeSheets {
	return &fakeSheets{
		log:     log,
		rows:    map[string][][]string{},
		formats: map[string]int{},
	}
}

func (f *fakeSheets) seed(sheet string, rows ...[]string) {
	f.rows[sheet] = append([][]string{{"Timestamp"}}, rows...)
}

func (f *fakeSheets) LastRow(_ context.Context, sheet string) (int, error) {
	return len(f.rows[sheet]), nil
}

func (f *fakeSheets) ReadRow(_ context.Context, sheet string, row int) ([]string, error) {
	f.log.add("sheets.read")
	data := f.rows[sheet]
	if row < 1 || row > len(data) {
		return nil, errors.New("row out of range")
	}
	return append([]string(nil), data[row-1]...), nil
}

func (f *fakeSheets) WriteRow(_ context.Context, sheet string, row int, values []string) error {
	f.log.add("sheets.write")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.rows[sheet][row-1] = append([]string(nil), values...)
	return nil
}

func (f *fakeSheets) SetLink(_ context.Context, _ string, link Link) error {
	f.log.add("sheets.link")
	f.links = append(f.links, link)
	return nil
}

func (f *fakeSheets) SortRows(_ context.Context, sheet string, column int, _ bool) error {
	f.log.add("sheets.sort")
	data := f.rows[sheet]
	if len(data) < 2 {
		return nil
	}
	body := data[1:]
	sort.SliceStable(body, func(i, j int) bool {
		return body[i][column-1] < body[j][column-1]
	})
	return nil
}

func (f *fakeSheets) ApplyFormat(_ context.Context, sheet string, _ FormatProfile, lastRow int) error {
	f.log.add("sheets.format")
	f.formats[sheet] = lastRow
	return nil
}

type fakeCalendar struct {
	log    *callLog
	events []Event
	err    error
}

func (f *fakeCalendar) CreateEvent(_ context.Context, event Event) (string, error) {
	f.log.add("calendar.create")
	if f.err != nil {
		return "", f.err
	}
	f.events = append(f.events, event)
	return "evt-1", nil
}

type fakeForms struct {
	log     *callLog
	cleared []string
}

func (f *fakeForms) ClearResponses(_ context.Context, formID string) error {
	f.log.add("forms.clear")
	f.cleared = append(f.cleared, formID)
	return nil
}

type fakeNotifier struct {
	log         *callLog
	emailErr    error
	attachments []*messages.Attachment
	baskets     []*records.BasketRecord
}

func (f *fakeNotifier) TextBody(user *records.UserRecord) (string, error) {
	return "text for " + user.Name, nil
}

func (f *fakeNotifier) SendText(context.Context, *records.UserRecord) error {
	f.log.add("notify.text")
	return nil
}

func (f *fakeNotifier) SendConfirmationEmail(context.Context, *records.UserRecord) error {
	f.log.add("notify.email")
	if f.emailErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeExternalService, f.emailErr, "send email")
	}
	return nil
}

func (f *fakeNotifier) SendBasketAssignmentEmail(_ context.Context, basket *records.BasketRecord, badge *messages.Attachment) error {
	f.log.add("notify.basket")
	f.baskets = append(f.baskets, basket)
	f.attachments = append(f.attachments, badge)
	return nil
}

type fakeBadges struct {
	log  *callLog
	data []records.BadgeData
}

func (f *fakeBadges) Generate(_ context.Context, data records.BadgeData, _ int) (*messages.Attachment, error) {
	f.log.add("badges.generate")
	f.data = append(f.data, data)
	return &messages.Attachment{Name: data.Basket + ".pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, nil
}

type fakeRuns struct {
	started  []Submission
	finished []enums.PipelineStage
	errs     []error
}

func (f *fakeRuns) Start(_ context.Context, sub Submission, _ time.Time) (uuid.UUID, error) {
	f.started = append(f.started, sub)
	return uuid.New(), nil
}

func (f *fakeRuns) Finish(_ context.Context, res *Result, runErr error, _ time.Time) error {
	f.finished = append(f.finished, res.Stage)
	f.errs = append(f.errs, runErr)
	return nil
}

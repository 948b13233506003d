// Package calendar books account-creation reminders on Google Calendar.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/google"
)

const reminderPopup = "popup"

type Client struct {
	svc        *calendarapi.Service
	calendarID string
}

var _ pipeline.Calendar = (*Client)(nil)

func New(ctx context.Context, gcp config.GCPConfig, gcfg config.GoogleConfig, cfg config.CalendarConfig) (*Client, error) {
	opts, err := google.ClientOptions(ctx, gcp, gcfg.ImpersonateSubject, google.ScopeCalendarEvents)
	if err != nil {
		return nil, err
	}
	svc, err := calendarapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return NewWithService(svc, cfg.ID)
}

func NewWithService(svc *calendarapi.Service, calendarID string) (*Client, error) {
	if svc == nil {
		return nil, fmt.Errorf("calendar service required")
	}
	if strings.TrimSpace(calendarID) == "" {
		return nil, fmt.Errorf("calendar id required")
	}
	return &Client{svc: svc, calendarID: calendarID}, nil
}

// CreateEvent inserts event and returns its id.
func (c *Client) CreateEvent(ctx context.Context, event pipeline.Event) (string, error) {
	created, err := c.svc.Events.Insert(c.calendarID, toAPIEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "calendar insert event")
	}
	return created.Id, nil
}

func toAPIEvent(event pipeline.Event) *calendarapi.Event {
	out := &calendarapi.Event{
		Summary:     event.Title,
		Description: event.Description,
		Start:       eventTime(event.Start),
		End:         eventTime(event.End),
		ColorId:     event.ColorID,
	}
	if event.PopupReminderMinutes > 0 {
		out.Reminders = &calendarapi.EventReminders{
			UseDefault: false,
			Overrides: []*calendarapi.EventReminder{{
				Method:  reminderPopup,
				Minutes: int64(event.PopupReminderMinutes),
			}},
			ForceSendFields: []string{"UseDefault"},
		}
	}
	return out
}

func eventTime(t time.Time) *calendarapi.EventDateTime {
	dt := &calendarapi.EventDateTime{DateTime: t.Format(time.RFC3339)}
	if name := t.Location().String(); name != "" && name != "Local" && !strings.HasPrefix(name, "UTC") {
		if _, err := time.LoadLocation(name); err == nil {
			dt.TimeZone = name
		}
	}
	return dt
}

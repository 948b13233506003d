package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
)

const productID = "-//labaccess//account requests//EN"

// calendarColors maps Google Calendar color ids onto RFC 7986 color names.
var calendarColors = map[string]string{
	"1":  "lavender",
	"2":  "mediumseagreen",
	"3":  "purple",
	"4":  "salmon",
	"5":  "gold",
	"6":  "orange",
	"7":  "turquoise",
	"8":  "gray",
	"9":  "blue",
	"10": "green",
	"11": "red",
}

// CalendarFile appends events to an .ics file.
type CalendarFile struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

var _ pipeline.Calendar = (*CalendarFile)(nil)

func NewCalendarFile(path string) (*CalendarFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("calendar path required")
	}
	return &CalendarFile{path: path, now: time.Now}, nil
}

func (c *CalendarFile) CreateEvent(_ context.Context, event pipeline.Event) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cal, err := c.load()
	if err != nil {
		return "", wrap(err, "read calendar")
	}

	id := uuid.NewString()
	vevent := cal.AddEvent(id)
	vevent.SetDtStampTime(c.now().UTC())
	vevent.SetStartAt(event.Start)
	vevent.SetEndAt(event.End)
	vevent.SetSummary(event.Title)
	vevent.SetDescription(event.Description)
	if color, ok := calendarColors[event.ColorID]; ok {
		vevent.SetColor(color)
	}
	if event.PopupReminderMinutes > 0 {
		alarm := vevent.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", event.PopupReminderMinutes))
	}

	if err := os.WriteFile(c.path, []byte(cal.Serialize()), 0o644); err != nil {
		return "", wrap(err, "write calendar")
	}
	return id, nil
}

// Events returns every event stored in the file.
func (c *CalendarFile) Events() ([]*ics.VEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cal, err := c.load()
	if err != nil {
		return nil, err
	}
	return cal.Events(), nil
}

func (c *CalendarFile) load() (*ics.Calendar, error) {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(bytes.TrimSpace(raw)) == 0) {
		cal := ics.NewCalendar()
		cal.SetMethod(ics.MethodPublish)
		cal.SetProductId(productID)
		return cal, nil
	}
	if err != nil {
		return nil, err
	}
	return ics.ParseCalendar(bytes.NewReader(raw))
}

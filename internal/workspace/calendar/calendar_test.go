package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
)

func TestCreateEventSendsReminderAndColor(t *testing.T) {
	var got calendarapi.Event
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-123"}`))
	}))
	defer srv.Close()

	svc, err := calendarapi.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	client, err := NewWithService(svc, "lab@example.edu")
	require.NoError(t, err)

	start := time.Date(2024, time.March, 4, 13, 0, 0, 0, time.FixedZone("CST", -6*3600))
	id, err := client.CreateEvent(context.Background(), pipeline.Event{
		Title:                "Lab Access: Create Account | User: John Doe",
		Description:          "<p>text</p>",
		Start:                start,
		End:                  start.Add(10 * time.Minute),
		ColorID:              "8",
		PopupReminderMinutes: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-123", id)
	assert.True(t, strings.HasSuffix(path, "/calendars/lab@example.edu/events"))

	assert.Equal(t, "Lab Access: Create Account | User: John Doe", got.Summary)
	assert.Equal(t, "8", got.ColorId)
	assert.Equal(t, "2024-03-04T13:00:00-06:00", got.Start.DateTime)
	assert.Equal(t, "2024-03-04T13:10:00-06:00", got.End.DateTime)
	require.NotNil(t, got.Reminders)
	assert.False(t, got.Reminders.UseDefault)
	require.Len(t, got.Reminders.Overrides, 1)
	assert.Equal(t, "popup", got.Reminders.Overrides[0].Method)
	assert.Equal(t, int64(15), got.Reminders.Overrides[0].Minutes)
}

func TestEventTimeNamesRealZones(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	dt := eventTime(time.Date(2024, time.March, 4, 13, 0, 0, 0, chicago))
	assert.Equal(t, "America/Chicago", dt.TimeZone)
	assert.Empty(t, eventTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).TimeZone)
}

func TestNewWithServiceValidates(t *testing.T) {
	_, err := NewWithService(nil, "x")
	require.Error(t, err)
}

// Package trigger turns form-submit notifications into pipeline runs. Events
// arrive over Pub/Sub or the signed webhook and are deduplicated by event id
// before the pipeline sees them.
package trigger

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

// Event is the form-submit notification. Row 0 selects the last row and an
// empty FormID selects the form configured for the sheet.
type Event struct {
	EventID string `json:"eventId"`
	Sheet   string `json:"sheet" validate:"required"`
	Row     int    `json:"row" validate:"gte=0"`
	FormID  string `json:"formId"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// Decode parses and checks a raw event payload.
func Decode(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid submission event")
	}
	event.Sheet = strings.TrimSpace(event.Sheet)
	event.EventID = strings.TrimSpace(event.EventID)
	event.FormID = strings.TrimSpace(event.FormID)
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Validate reports missing or out-of-range fields.
func (e Event) Validate() error {
	e.Sheet = strings.TrimSpace(e.Sheet)
	err := validate.Struct(e)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid submission event")
	}
	fe := fieldErrs[0]
	message := fe.Field() + " is invalid"
	switch fe.Tag() {
	case "required":
		message = fe.Field() + " is required"
	case "gte":
		message = fe.Field() + " must be zero or positive"
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(map[string]any{"field": fe.Field(), "value": fe.Value()})
}

func (e Event) submission(kind enums.SubmissionKind, source enums.TriggerSource) pipeline.Submission {
	return pipeline.Submission{
		Kind:    kind,
		Sheet:   e.Sheet,
		Row:     e.Row,
		FormID:  e.FormID,
		EventID: e.EventID,
		Source:  source,
	}
}

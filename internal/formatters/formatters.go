// Package formatters normalizes raw form values before they are written back
// to the sheet or used in notifications.
package formatters

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

const (
	// DateLayout is the assignment date printed on badges.
	DateLayout = "2006-01-02"
	// SheetTimestampLayout matches the number format applied to timestamp cells.
	SheetTimestampLayout = "2006-01-02 15:04:05"

	activationHour = 13
)

var (
	nonDigit      = regexp.MustCompile(`\D`)
	nonLetter     = regexp.MustCompile(`[^a-zA-Z]`)
	phonePattern  = regexp.MustCompile(`^(1)?(\d{3})(\d{3})(\d{4})$`)
	timestampForm = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		SheetTimestampLayout,
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		DateLayout,
	}
)

// PhoneNumber strips every non-digit and renders the remaining ten digits as
// (AAA) BBB-CCCC, prefixed with +1 when an eleventh leading 1 is present.
func PhoneNumber(input string) (string, error) {
	digits := nonDigit.ReplaceAllString(input, "")
	match := phonePattern.FindStringSubmatch(digits)
	if match == nil {
		return "", pkgerrors.New(pkgerrors.CodeFormat, "phone number must have 10 digits or 11 with a leading 1").
			WithDetails(map[string]any{"field": "phone", "value": input})
	}
	prefix := ""
	if match[1] != "" {
		prefix = "+1 "
	}
	return prefix + "(" + match[2] + ") " + match[3] + "-" + match[4], nil
}

// TitleCase upper-cases the first character of every space separated token and
// lower-cases the rest. Hyphens and apostrophes are not word boundaries.
func TitleCase(input string) string {
	parts := strings.Split(input, " ")
	for i, part := range parts {
		parts[i] = capitalize(part)
	}
	return strings.Join(parts, " ")
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	first, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(first)) + strings.ToLower(word[size:])
}

// NextBusinessDay returns the next weekday after ref at 13:00 in ref's location.
// Friday and Saturday roll over to Monday.
func NextBusinessDay(ref time.Time) time.Time {
	daysLeftInWeek := 7 - int(ref.Weekday())
	step := 1
	if daysLeftInWeek <= 2 {
		step = daysLeftInWeek + 1
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day()+step, activationHour, 0, 0, 0, ref.Location())
}

// Username joins the letters of the first and last name as first_last.
func Username(first, last string) string {
	return strings.ToLower(nonLetter.ReplaceAllString(first, "")) + "_" +
		strings.ToLower(nonLetter.ReplaceAllString(last, ""))
}

// ParseTimestamp reads a form or sheet timestamp in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	value := strings.TrimSpace(raw)
	for _, layout := range timestampForm {
		if layout == time.RFC3339 {
			if ts, err := time.Parse(layout, value); err == nil {
				return ts.In(loc), nil
			}
			continue
		}
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, pkgerrors.New(pkgerrors.CodeFormat, "timestamp is not a recognized date").
		WithDetails(map[string]any{"field": "timestamp", "value": raw})
}

// DateStamp renders t as YYYY-MM-DD.
func DateStamp(t time.Time) string {
	return t.Format(DateLayout)
}

// SheetTimestamp renders t the way timestamp cells are written back.
func SheetTimestamp(t time.Time) string {
	return t.Format(SheetTimestampLayout)
}

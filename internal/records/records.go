// Package records turns raw sheet rows into normalized submission records.
// Extraction never writes; callers persist WriteBack themselves.
package records

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/angelmondragon/labaccess-backend/internal/formatters"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

// MarkerColumn is the zero-based column holding the processed marker on both sheets.
const MarkerColumn = 8

// RowWidth is the number of columns every submission row carries.
const RowWidth = MarkerColumn + 1

const alreadyDoneReason = "This row has already been done. Code should not have selected that row."

// UserRecord is a normalized lab access registration.
type UserRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Password   string    `json:"password"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	Professor  string    `json:"professor"`
	EID        string    `json:"eid"`
	Name       string    `json:"name"`
	Username   string    `json:"username"`
	Activation time.Time `json:"activation"`
}

// BasketRecord is a normalized cleanroom basket event.
type BasketRecord struct {
	Timestamp time.Time          `json:"timestamp"`
	EID       string             `json:"eid"`
	Phone     string             `json:"phone"`
	Email     string             `json:"email"`
	FirstName string             `json:"firstName"`
	LastName  string             `json:"lastName"`
	Status    enums.BasketStatus `json:"status"`
	Basket    string             `json:"basket"`
}

// FullName joins the normalized first and last names.
func (b *BasketRecord) FullName() string {
	return b.FirstName + " " + b.LastName
}

// UserExtraction is the result of reading a registration row.
type UserExtraction struct {
	Status    enums.RowStatus
	Record    *UserRecord
	WriteBack []string
}

// BasketExtraction is the result of reading a basket row. The marker cell of
// WriteBack carries the badge hash.
type BasketExtraction struct {
	Status    enums.RowStatus
	Record    *BasketRecord
	Badge     BadgeData
	WriteBack []string
}

// InspectRow pads row to RowWidth and reports its processed status.
func InspectRow(row []string) ([]string, enums.RowStatus) {
	padded := make([]string, RowWidth)
	copy(padded, row)
	return padded, enums.RowStatusFromMarker(strings.TrimSpace(padded[MarkerColumn]))
}

// ExtractUser normalizes a registration row.
func ExtractUser(row []string, loc *time.Location) (*UserExtraction, error) {
	values, status := InspectRow(row)
	if status == enums.RowStatusProcessed {
		return nil, alreadyProcessed(row)
	}

	ts, err := formatters.ParseTimestamp(values[0], loc)
	if err != nil {
		return nil, err
	}
	phone, err := formatters.PhoneNumber(values[4])
	if err != nil {
		return nil, err
	}

	record := &UserRecord{
		Timestamp:  ts,
		FirstName:  formatters.TitleCase(values[1]),
		LastName:   formatters.TitleCase(values[2]),
		Password:   values[3],
		Phone:      phone,
		Email:      strings.ToLower(values[5]),
		Professor:  formatters.TitleCase(values[6]),
		EID:        strings.ToLower(values[7]),
		Name:       formatters.TitleCase(values[1] + " " + values[2]),
		Username:   formatters.Username(values[1], values[2]),
		Activation: formatters.NextBusinessDay(ts),
	}

	marker, err := json.Marshal(record)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode user record")
	}

	return &UserExtraction{
		Status: enums.RowStatusPending,
		Record: record,
		WriteBack: []string{
			formatters.SheetTimestamp(record.Timestamp),
			record.FirstName,
			record.LastName,
			record.Password,
			record.Phone,
			record.Email,
			record.Professor,
			record.EID,
			string(marker),
		},
	}, nil
}

// ExtractBasket normalizes a basket assignment row and derives its badge data.
func ExtractBasket(row []string, loc *time.Location) (*BasketExtraction, error) {
	values, status := InspectRow(row)
	if status == enums.RowStatusProcessed {
		return nil, alreadyProcessed(row)
	}

	ts, err := formatters.ParseTimestamp(values[0], loc)
	if err != nil {
		return nil, err
	}
	phone, err := formatters.PhoneNumber(values[2])
	if err != nil {
		return nil, err
	}
	basketStatus, err := enums.ParseBasketStatus(values[6])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFormat, err, "basket status must be Assign or Return").
			WithDetails(map[string]any{"field": "status", "value": values[6]})
	}

	record := &BasketRecord{
		Timestamp: ts,
		EID:       strings.ToLower(values[1]),
		Phone:     phone,
		Email:     strings.ToLower(values[3]),
		FirstName: formatters.TitleCase(values[4]),
		LastName:  formatters.TitleCase(values[5]),
		Status:    basketStatus,
		Basket:    strings.TrimSpace(values[7]),
	}

	badge := BadgeData{
		EID:      record.EID,
		Name:     record.FullName(),
		Phone:    record.Phone,
		Email:    record.Email,
		Basket:   record.Basket,
		Assigned: formatters.DateStamp(record.Timestamp),
	}
	hash, err := badge.ComputeHash()
	if err != nil {
		return nil, err
	}
	badge.Hash = hash

	return &BasketExtraction{
		Status: enums.RowStatusPending,
		Record: record,
		Badge:  badge,
		WriteBack: []string{
			formatters.SheetTimestamp(record.Timestamp),
			record.EID,
			record.Phone,
			record.Email,
			record.FirstName,
			record.LastName,
			string(record.Status),
			record.Basket,
			hash,
		},
	}, nil
}

// WithMarker returns a copy of writeBack with the marker cell set.
func WithMarker(writeBack []string, marker string) []string {
	out := make([]string, RowWidth)
	copy(out, writeBack)
	out[MarkerColumn] = marker
	return out
}

func alreadyProcessed(row []string) error {
	raw := append([]string(nil), row...)
	return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, alreadyDoneReason).
		WithDetails(map[string]any{
			"reason":  alreadyDoneReason,
			"rowInfo": "Row Info: " + strings.Join(raw, ","),
			"row":     raw,
		})
}

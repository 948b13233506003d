// Package sheets implements the pipeline's spreadsheet port on the Google
// Sheets API.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/internal/records"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/google"
)

const (
	lastColumn       = "I"
	inputUserEntered = "USER_ENTERED"
	inputRaw         = "RAW"
	renderFormatted  = "FORMATTED_VALUE"
)

// Client reads and writes submission rows of one spreadsheet.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

var _ pipeline.SheetStore = (*Client)(nil)

// New builds a Sheets client acting as the configured Workspace user.
func New(ctx context.Context, gcp config.GCPConfig, cfg config.GoogleConfig) (*Client, error) {
	opts, err := google.ClientOptions(ctx, gcp, cfg.ImpersonateSubject, google.ScopeSpreadsheets)
	if err != nil {
		return nil, err
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID)
}

// NewWithService wraps an existing service.
func NewWithService(svc *sheetsapi.Service, spreadsheetID string) (*Client, error) {
	if svc == nil {
		return nil, fmt.Errorf("sheets service required")
	}
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id required")
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetIDs: map[string]int64{}}, nil
}

// LastRow returns the last row holding data, header included.
func (c *Client) LastRow(ctx context.Context, sheet string) (int, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(sheet, "A:"+lastColumn)).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, wrap(err, "read sheet values")
	}
	return len(resp.Values), nil
}

func (c *Client) ReadRow(ctx context.Context, sheet string, row int) ([]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(sheet, rowRange(row))).
		ValueRenderOption(renderFormatted).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrap(err, "read row")
	}
	out := make([]string, records.RowWidth)
	if len(resp.Values) == 0 {
		return out, nil
	}
	for i, cell := range resp.Values[0] {
		if i >= len(out) {
			break
		}
		if s, ok := cell.(string); ok {
			out[i] = s
			continue
		}
		out[i] = fmt.Sprintf("%v", cell)
	}
	return out, nil
}

// WriteRow writes the timestamp as user-entered so it stays a date and every
// other cell raw so values like "+1 (...)" are never parsed as formulas.
func (c *Client) WriteRow(ctx context.Context, sheet string, row int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	stamp := &sheetsapi.ValueRange{Values: [][]any{{values[0]}}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(sheet, fmt.Sprintf("A%d", row)), stamp).
		ValueInputOption(inputUserEntered).
		Context(ctx).
		Do(); err != nil {
		return wrap(err, "write timestamp")
	}
	if len(values) == 1 {
		return nil
	}
	rest := make([]any, 0, len(values)-1)
	for _, v := range values[1:] {
		rest = append(rest, v)
	}
	body := &sheetsapi.ValueRange{Values: [][]any{rest}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(sheet, fmt.Sprintf("B%d:%s%d", row, lastColumn, row)), body).
		ValueInputOption(inputRaw).
		Context(ctx).
		Do(); err != nil {
		return wrap(err, "write row")
	}
	return nil
}

// SetLink stores the link as a cell-level text format so later value writes
// to the same cell keep it.
func (c *Client) SetLink(ctx context.Context, sheet string, link pipeline.Link) error {
	sheetID, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	text := link.Text
	format := textFormat(link.Style)
	format.Link = &sheetsapi.Link{Uri: link.URL}
	req := &sheetsapi.Request{
		RepeatCell: &sheetsapi.RepeatCellRequest{
			Range: cellRange(sheetID, link.Row, link.Column),
			Cell: &sheetsapi.CellData{
				UserEnteredValue:  &sheetsapi.ExtendedValue{StringValue: &text},
				UserEnteredFormat: &sheetsapi.CellFormat{TextFormat: format},
			},
			Fields: "userEnteredValue,userEnteredFormat.textFormat",
		},
	}
	return c.batch(ctx, "link cell", req)
}

func (c *Client) SortRows(ctx context.Context, sheet string, column int, ascending bool) error {
	sheetID, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	order := "ASCENDING"
	if !ascending {
		order = "DESCENDING"
	}
	req := &sheetsapi.Request{
		SortRange: &sheetsapi.SortRangeRequest{
			Range: &sheetsapi.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    1,
				StartColumnIndex: 0,
				EndColumnIndex:   records.RowWidth,
				ForceSendFields:  []string{"SheetId"},
			},
			SortSpecs: []*sheetsapi.SortSpec{{
				DimensionIndex:  int64(column - 1),
				SortOrder:       order,
				ForceSendFields: []string{"DimensionIndex"},
			}},
		},
	}
	return c.batch(ctx, "sort rows", req)
}

// ApplyFormat resets fonts and number formats, auto-resizes the profile's
// columns and then widens any column below its minimum width.
func (c *Client) ApplyFormat(ctx context.Context, sheet string, profile pipeline.FormatProfile, lastRow int) error {
	if lastRow < 1 {
		lastRow = 1
	}
	sheetID, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	reqs := formatRequests(sheetID, profile, lastRow)
	if err := c.batch(ctx, "format sheet", reqs...); err != nil {
		return err
	}

	widths, err := c.columnWidths(ctx, sheet)
	if err != nil {
		return err
	}
	var resize []*sheetsapi.Request
	for i := range profile.MinColumnWidths {
		column := i + 1
		current := int64(0)
		if i < len(widths) {
			current = widths[i]
		}
		want := int64(profile.WidenTo(column, int(current)))
		if want == current {
			continue
		}
		resize = append(resize, &sheetsapi.Request{
			UpdateDimensionProperties: &sheetsapi.UpdateDimensionPropertiesRequest{
				Range:      columnRange(sheetID, column, column),
				Properties: &sheetsapi.DimensionProperties{PixelSize: want},
				Fields:     "pixelSize",
			},
		})
	}
	if len(resize) == 0 {
		return nil
	}
	return c.batch(ctx, "set column widths", resize...)
}

func formatRequests(sheetID int64, profile pipeline.FormatProfile, lastRow int) []*sheetsapi.Request {
	reqs := []*sheetsapi.Request{{
		RepeatCell: &sheetsapi.RepeatCellRequest{
			Range: &sheetsapi.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    0,
				EndRowIndex:      int64(lastRow),
				StartColumnIndex: 0,
				EndColumnIndex:   records.RowWidth,
				ForceSendFields:  []string{"SheetId"},
			},
			Cell: &sheetsapi.CellData{
				UserEnteredFormat: &sheetsapi.CellFormat{TextFormat: textFormat(profile.Style)},
			},
			Fields: "userEnteredFormat.textFormat.fontFamily,userEnteredFormat.textFormat.fontSize," +
				"userEnteredFormat.textFormat.foregroundColorStyle,userEnteredFormat.textFormat.underline",
		},
	}}
	for _, nf := range profile.NumberFormats {
		grid := &sheetsapi.GridRange{
			SheetId:          sheetID,
			StartColumnIndex: int64(nf.FromColumn - 1),
			EndColumnIndex:   int64(nf.ToColumn),
			ForceSendFields:  []string{"SheetId"},
		}
		switch {
		case nf.LastRowOnly:
			grid.StartRowIndex = int64(lastRow - 1)
			grid.EndRowIndex = int64(lastRow)
		case nf.FirstRow > 0:
			grid.StartRowIndex = int64(nf.FirstRow - 1)
		}
		reqs = append(reqs, &sheetsapi.Request{
			RepeatCell: &sheetsapi.RepeatCellRequest{
				Range: grid,
				Cell: &sheetsapi.CellData{
					UserEnteredFormat: &sheetsapi.CellFormat{
						NumberFormat: &sheetsapi.NumberFormat{Type: string(nf.Kind), Pattern: nf.Pattern},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}
	if profile.AutoResizeTo >= profile.AutoResizeFrom && profile.AutoResizeFrom > 0 {
		reqs = append(reqs, &sheetsapi.Request{
			AutoResizeDimensions: &sheetsapi.AutoResizeDimensionsRequest{
				Dimensions: columnRange(sheetID, profile.AutoResizeFrom, profile.AutoResizeTo),
			},
		})
	}
	return reqs
}

func (c *Client) columnWidths(ctx context.Context, sheet string) ([]int64, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Ranges(a1(sheet, "A1:"+lastColumn+"1")).
		Fields("sheets(data(columnMetadata(pixelSize)))").
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrap(err, "read column widths")
	}
	if len(resp.Sheets) == 0 || len(resp.Sheets[0].Data) == 0 {
		return nil, nil
	}
	meta := resp.Sheets[0].Data[0].ColumnMetadata
	out := make([]int64, len(meta))
	for i, m := range meta {
		out[i] = m.PixelSize
	}
	return out, nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.sheetIDs[title]; ok {
		return id, nil
	}
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return 0, wrap(err, "list sheets")
	}
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
	}
	id, ok := c.sheetIDs[title]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "sheet not found").
			WithDetails(map[string]any{"sheet": title})
	}
	return id, nil
}

func (c *Client) batch(ctx context.Context, action string, reqs ...*sheetsapi.Request) error {
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).
		Do()
	if err != nil {
		return wrap(err, action)
	}
	return nil
}

func textFormat(style pipeline.TextStyle) *sheetsapi.TextFormat {
	return &sheetsapi.TextFormat{
		FontFamily:           style.FontFamily,
		FontSize:             int64(style.FontSize),
		ForegroundColorStyle: &sheetsapi.ColorStyle{RgbColor: hexColor(style.Color)},
		Underline:            style.Underline,
		ForceSendFields:      []string{"Underline"},
	}
}

// hexColor parses "#RRGGBB"; anything else is black.
func hexColor(value string) *sheetsapi.Color {
	color := &sheetsapi.Color{ForceSendFields: []string{"Red", "Green", "Blue"}}
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) != 6 {
		return color
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color
	}
	color.Red = float64((rgb>>16)&0xff) / 255
	color.Green = float64((rgb>>8)&0xff) / 255
	color.Blue = float64(rgb&0xff) / 255
	return color
}

func cellRange(sheetID int64, row, column int) *sheetsapi.GridRange {
	return &sheetsapi.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    int64(row - 1),
		EndRowIndex:      int64(row),
		StartColumnIndex: int64(column - 1),
		EndColumnIndex:   int64(column),
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

func columnRange(sheetID int64, from, to int) *sheetsapi.DimensionRange {
	return &sheetsapi.DimensionRange{
		SheetId:         sheetID,
		Dimension:       "COLUMNS",
		StartIndex:      int64(from - 1),
		EndIndex:        int64(to),
		ForceSendFields: []string{"SheetId", "StartIndex"},
	}
}

// a1 quotes sheet for A1 notation.
func a1(sheet, rng string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
}

func rowRange(row int) string {
	return fmt.Sprintf("A%d:%s%d", row, lastColumn, row)
}

func wrap(err error, action string) error {
	return pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "sheets: "+action)
}

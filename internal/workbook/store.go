// Package workbook is the offline workspace backend: submission sheets live
// in a local xlsx file and calendar events in an iCalendar file.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/labaccess-backend/internal/formatters"
	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/internal/records"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

const (
	defaultSheet = "Sheet1"
	linkExternal = "External"
	linkNone     = "None"
	textNumFmt   = 49
	// pixelsPerChar approximates the Calibri 11 character width excel uses for column units.
	pixelsPerChar = 7.0
)

var (
	UserHeader   = []string{"Timestamp", "First Name", "Last Name", "Password", "Phone Number", "Email", "Professor", "EID", "Record"}
	BasketHeader = []string{"Timestamp", "EID", "Phone Number", "Email", "First Name", "Last Name", "Status", "Basket", "Hash"}
)

// Store implements the pipeline's sheet port over an xlsx file. Every
// mutation is saved immediately.
type Store struct {
	mu   sync.Mutex
	path string
	file *excelize.File
	loc  *time.Location
}

var _ pipeline.SheetStore = (*Store)(nil)

// Open loads path, creating an empty workbook when it does not exist.
func Open(path string, loc *time.Location) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("workbook path required")
	}
	if loc == nil {
		loc = time.Local
	}
	var file *excelize.File
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		file = excelize.NewFile()
	} else {
		file, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("opening workbook %s: %w", path, err)
		}
	}
	return &Store{path: path, file: file, loc: loc}, nil
}

// EnsureSheet creates sheet with header when missing.
func (s *Store) EnsureSheet(sheet string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.file.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return nil
	}
	if _, err := s.file.NewSheet(sheet); err != nil {
		return err
	}
	if err := s.file.SetSheetRow(sheet, "A1", toRow(header)); err != nil {
		return err
	}
	if list := s.file.GetSheetList(); len(list) > 1 && list[0] == defaultSheet {
		if rows, _ := s.file.GetRows(defaultSheet); len(rows) == 0 {
			if err := s.file.DeleteSheet(defaultSheet); err != nil {
				return err
			}
		}
	}
	return s.save()
}

// AppendRow adds a raw submission after the last row, the way a form does.
func (s *Store) AppendRow(sheet string, values []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.rows(sheet)
	if err != nil {
		return 0, err
	}
	row := len(rows) + 1
	if err := s.file.SetSheetRow(sheet, cellName(1, row), toRow(values)); err != nil {
		return 0, wrap(err, "append row")
	}
	return row, s.save()
}

func (s *Store) LastRow(_ context.Context, sheet string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.rows(sheet)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) ReadRow(_ context.Context, sheet string, row int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.rows(sheet)
	if err != nil {
		return nil, err
	}
	out := make([]string, records.RowWidth)
	if row >= 1 && row <= len(rows) {
		copy(out, rows[row-1])
	}
	return out, nil
}

func (s *Store) WriteRow(_ context.Context, sheet string, row int, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.SetSheetRow(sheet, cellName(1, row), toRow(values)); err != nil {
		return wrap(err, "write row")
	}
	return s.save()
}

func (s *Store) SetLink(_ context.Context, sheet string, link pipeline.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell := cellName(link.Column, link.Row)
	if err := s.file.SetCellStr(sheet, cell, link.Text); err != nil {
		return wrap(err, "set link text")
	}
	display := link.Text
	if err := s.file.SetCellHyperLink(sheet, cell, link.URL, linkExternal, excelize.HyperlinkOpts{Display: &display}); err != nil {
		return wrap(err, "set hyperlink")
	}
	style, err := s.file.NewStyle(&excelize.Style{Font: font(link.Style)})
	if err != nil {
		return wrap(err, "link style")
	}
	if err := s.file.SetCellStyle(sheet, cell, cell, style); err != nil {
		return wrap(err, "apply link style")
	}
	return s.save()
}

type sortable struct {
	values []string
	key    time.Time
	links  map[int]string
}

// SortRows reorders every row below the header. Timestamp-like cells sort
// chronologically; hyperlinks move with their rows.
func (s *Store) SortRows(_ context.Context, sheet string, column int, ascending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.rows(sheet)
	if err != nil {
		return err
	}
	if len(rows) < 3 {
		return nil
	}
	body := make([]sortable, 0, len(rows)-1)
	for i, values := range rows[1:] {
		rowNum := i + 2
		padded := make([]string, records.RowWidth)
		copy(padded, values)
		item := sortable{values: padded, links: map[int]string{}}
		if column-1 < len(padded) {
			if ts, err := formatters.ParseTimestamp(padded[column-1], s.loc); err == nil {
				item.key = ts
			}
		}
		for col := 1; col <= records.RowWidth; col++ {
			ok, target, err := s.file.GetCellHyperLink(sheet, cellName(col, rowNum))
			if err != nil {
				return wrap(err, "read hyperlink")
			}
			if ok {
				item.links[col] = target
				if err := s.file.SetCellHyperLink(sheet, cellName(col, rowNum), "", linkNone); err != nil {
					return wrap(err, "clear hyperlink")
				}
			}
		}
		body = append(body, item)
	}
	sort.SliceStable(body, func(i, j int) bool {
		if ascending {
			return body[i].key.Before(body[j].key)
		}
		return body[j].key.Before(body[i].key)
	})
	for i, item := range body {
		rowNum := i + 2
		if err := s.file.SetSheetRow(sheet, cellName(1, rowNum), toRow(item.values)); err != nil {
			return wrap(err, "rewrite row")
		}
		for col, target := range item.links {
			display := item.values[col-1]
			if err := s.file.SetCellHyperLink(sheet, cellName(col, rowNum), target, linkExternal, excelize.HyperlinkOpts{Display: &display}); err != nil {
				return wrap(err, "restore hyperlink")
			}
		}
	}
	return s.save()
}

// ApplyFormat styles rows 1..lastRow with the profile font and number
// formats and sizes columns to their longest value, never below the minimum.
func (s *Store) ApplyFormat(_ context.Context, sheet string, profile pipeline.FormatProfile, lastRow int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.rows(sheet)
	if err != nil {
		return err
	}
	styles := map[string]int{}
	styleFor := func(nf *pipeline.NumberFormat) (int, error) {
		key := ""
		if nf != nil {
			key = nf.Pattern
		}
		if id, ok := styles[key]; ok {
			return id, nil
		}
		st := &excelize.Style{Font: font(profile.Style)}
		switch {
		case nf == nil:
		case nf.Kind == pipeline.NumberFormatText:
			st.NumFmt = textNumFmt
		default:
			pattern := nf.Pattern
			st.CustomNumFmt = &pattern
		}
		id, err := s.file.NewStyle(st)
		if err != nil {
			return 0, err
		}
		styles[key] = id
		return id, nil
	}

	for row := 1; row <= lastRow; row++ {
		for col := 1; col <= records.RowWidth; col++ {
			id, err := styleFor(numberFormatAt(profile, row, col, lastRow))
			if err != nil {
				return wrap(err, "create style")
			}
			cell := cellName(col, row)
			if err := s.file.SetCellStyle(sheet, cell, cell, id); err != nil {
				return wrap(err, "apply style")
			}
		}
	}

	if profile.AutoResizeFrom > 0 {
		for col := profile.AutoResizeFrom; col <= profile.AutoResizeTo; col++ {
			chars := 0
			for _, r := range rows {
				if col-1 < len(r) {
					if n := utf8.RuneCountInString(r[col-1]); n > chars {
						chars = n
					}
				}
			}
			px := profile.WidenTo(col, int(float64(chars+2)*pixelsPerChar))
			name, _ := excelize.ColumnNumberToName(col)
			if err := s.file.SetColWidth(sheet, name, name, float64(px)/pixelsPerChar); err != nil {
				return wrap(err, "set column width")
			}
		}
	}
	return s.save()
}

// ColumnWidthPixels reports a column width converted to pixels.
func (s *Store) ColumnWidthPixels(sheet string, column int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, err := excelize.ColumnNumberToName(column)
	if err != nil {
		return 0, err
	}
	w, err := s.file.GetColWidth(sheet, name)
	if err != nil {
		return 0, err
	}
	return int(w*pixelsPerChar + 0.5), nil
}

// Rows returns every row of sheet, header included.
func (s *Store) Rows(sheet string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows(sheet)
}

// Close releases the underlying workbook.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func numberFormatAt(profile pipeline.FormatProfile, row, col, lastRow int) *pipeline.NumberFormat {
	var match *pipeline.NumberFormat
	for i := range profile.NumberFormats {
		nf := &profile.NumberFormats[i]
		if col < nf.FromColumn || col > nf.ToColumn {
			continue
		}
		if nf.LastRowOnly && row != lastRow {
			continue
		}
		if nf.FirstRow > 0 && row < nf.FirstRow {
			continue
		}
		match = nf
	}
	return match
}

func (s *Store) rows(sheet string) ([][]string, error) {
	rows, err := s.file.GetRows(sheet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "workbook sheet not found").
			WithDetails(map[string]any{"sheet": sheet})
	}
	return rows, nil
}

func (s *Store) save() error {
	if err := s.file.SaveAs(s.path); err != nil {
		return wrap(err, "save workbook")
	}
	return nil
}

func font(style pipeline.TextStyle) *excelize.Font {
	if style.FontFamily == "" {
		style = pipeline.DefaultTextStyle
	}
	f := &excelize.Font{
		Family: style.FontFamily,
		Size:   float64(style.FontSize),
		Color:  strings.TrimPrefix(style.Color, "#"),
	}
	if style.Underline {
		f.Underline = "single"
	}
	return f
}

func toRow(values []string) *[]any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return &row
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func wrap(err error, action string) error {
	return pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "workbook: "+action)
}

package pipeline

// TextStyle is the font applied to sheet cells.
type TextStyle struct {
	FontFamily string
	FontSize   int
	Color      string
	Underline  bool
}

// NumberFormatKind distinguishes date-time and plain-text number formats.
type NumberFormatKind string

const (
	NumberFormatDateTime NumberFormatKind = "DATE_TIME"
	NumberFormatText     NumberFormatKind = "TEXT"
)

// NumberFormat applies Pattern to columns FromColumn..ToColumn. FirstRow 0
// means the whole column; LastRowOnly restricts it to the final data row.
type NumberFormat struct {
	FromColumn  int
	ToColumn    int
	FirstRow    int
	LastRowOnly bool
	Kind        NumberFormatKind
	Pattern     string
}

// FormatProfile is the presentation a sheet is reset to after every run.
type FormatProfile struct {
	Style           TextStyle
	AutoResizeFrom  int
	AutoResizeTo    int
	MinColumnWidths []int
	NumberFormats   []NumberFormat
}

const timestampPattern = "YYYY-MM-DD hh:mm:ss"

// DefaultTextStyle is the house style for every sheet cell.
var DefaultTextStyle = TextStyle{
	FontFamily: "Times New Roman",
	FontSize:   12,
	Color:      "#000000",
	Underline:  false,
}

// UserSheetProfile formats the registration sheet.
func UserSheetProfile() FormatProfile {
	return FormatProfile{
		Style:           DefaultTextStyle,
		AutoResizeFrom:  1,
		AutoResizeTo:    8,
		MinColumnWidths: []int{100, 100, 100, 100, 130, 130, 160, 100},
		NumberFormats: []NumberFormat{
			{FromColumn: 1, ToColumn: 1, LastRowOnly: true, Kind: NumberFormatDateTime, Pattern: timestampPattern},
		},
	}
}

// BasketSheetProfile formats the basket assignment sheet.
func BasketSheetProfile() FormatProfile {
	return FormatProfile{
		Style:           DefaultTextStyle,
		AutoResizeFrom:  1,
		AutoResizeTo:    9,
		MinColumnWidths: []int{100, 100, 130, 100, 100, 150, 150},
		NumberFormats: []NumberFormat{
			{FromColumn: 1, ToColumn: 1, FirstRow: 2, Kind: NumberFormatDateTime, Pattern: timestampPattern},
			{FromColumn: 2, ToColumn: 9, Kind: NumberFormatText, Pattern: "@"},
		},
	}
}

// WidenTo returns the width a column should end with after auto-resizing.
func (p FormatProfile) WidenTo(column, current int) int {
	if column < 1 || column > len(p.MinColumnWidths) {
		return current
	}
	if min := p.MinColumnWidths[column-1]; current < min {
		return min
	}
	return current
}

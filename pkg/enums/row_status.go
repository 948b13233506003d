package enums

// RowStatus tracks whether a sheet row has been handled by the pipeline.
// A processed row carries a non-empty marker cell.
type RowStatus string

const (
	RowStatusPending   RowStatus = "pending"
	RowStatusProcessed RowStatus = "processed"
)

// RowStatusFromMarker derives the status from the marker cell contents.
func RowStatusFromMarker(marker string) RowStatus {
	if marker == "" {
		return RowStatusPending
	}
	return RowStatusProcessed
}

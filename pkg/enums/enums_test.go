package enums

import "testing"

func TestParseBasketStatusIgnoresCase(t *testing.T) {
	got, err := ParseBasketStatus(" assign ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != BasketStatusAssign {
		t.Fatalf("expected Assign, got %q", got)
	}
	if _, err := ParseBasketStatus("Lost"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestRowStatusFromMarker(t *testing.T) {
	if RowStatusFromMarker("") != RowStatusPending {
		t.Fatalf("empty marker should be pending")
	}
	if RowStatusFromMarker("ABC") != RowStatusProcessed {
		t.Fatalf("non-empty marker should be processed")
	}
}

func TestPipelineStageOrdering(t *testing.T) {
	if PipelineStageNew.Index() >= PipelineStageExtracted.Index() {
		t.Fatalf("new must precede extracted")
	}
	if PipelineStageFormatted.Index() >= PipelineStageAcknowledged.Index() {
		t.Fatalf("formatted must precede acknowledged")
	}
	if PipelineStage("bogus").IsValid() {
		t.Fatalf("unexpected valid stage")
	}
	if _, err := ParsePipelineStage("written_back"); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
}

func TestSubmissionKindAndRunStatus(t *testing.T) {
	if !SubmissionKindBasketAssignment.IsValid() {
		t.Fatalf("basket kind should be valid")
	}
	if _, err := ParseSubmissionKind("other"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := ParseRunStatus("failed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if RunStatus("paused").IsValid() {
		t.Fatalf("unexpected valid status")
	}
}

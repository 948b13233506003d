package enums

import "fmt"

// PipelineStage is the last stage a submission run reached.
type PipelineStage string

const (
	PipelineStageNew                 PipelineStage = "new"
	PipelineStageExtracted           PipelineStage = "extracted"
	PipelineStageSideEffectsComplete PipelineStage = "side_effects_complete"
	PipelineStageWrittenBack         PipelineStage = "written_back"
	PipelineStageFormatted           PipelineStage = "formatted"
	PipelineStageAcknowledged        PipelineStage = "acknowledged"
)

var orderedPipelineStages = []PipelineStage{
	PipelineStageNew,
	PipelineStageExtracted,
	PipelineStageSideEffectsComplete,
	PipelineStageWrittenBack,
	PipelineStageFormatted,
	PipelineStageAcknowledged,
}

func (s PipelineStage) IsValid() bool {
	return s.Index() >= 0
}

// Index returns the position of the stage in the pipeline or -1.
func (s PipelineStage) Index() int {
	for i, candidate := range orderedPipelineStages {
		if candidate == s {
			return i
		}
	}
	return -1
}

// ParsePipelineStage converts the raw string to PipelineStage.
func ParsePipelineStage(value string) (PipelineStage, error) {
	for _, candidate := range orderedPipelineStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pipeline stage %q", value)
}

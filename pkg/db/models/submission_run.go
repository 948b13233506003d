package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/pkg/enums"
)

// SubmissionRun records one pipeline invocation for a sheet row.
type SubmissionRun struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	EventID     string               `gorm:"column:event_id;not null"`
	Source      enums.TriggerSource  `gorm:"column:source;not null"`
	Kind        enums.SubmissionKind `gorm:"column:kind;not null"`
	SheetName   string               `gorm:"column:sheet_name;not null"`
	RowNumber   int                  `gorm:"column:row_number;not null"`
	Status      enums.RunStatus      `gorm:"column:status;not null"`
	Stage       enums.PipelineStage  `gorm:"column:stage;not null"`
	ErrorCode   *string              `gorm:"column:error_code"`
	ErrorDetail *string              `gorm:"column:error_detail"`
	StartedAt   time.Time            `gorm:"column:started_at;not null"`
	FinishedAt  *time.Time           `gorm:"column:finished_at"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (SubmissionRun) TableName() string { return "submission_runs" }

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labaccess-backend/pkg/enums"
)

// Badge indexes a generated basket badge by its integrity hash.
type Badge struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Hash       string             `gorm:"column:hash;not null;uniqueIndex"`
	EID        string             `gorm:"column:eid;not null"`
	Basket     string             `gorm:"column:basket;not null"`
	Status     enums.BasketStatus `gorm:"column:status;not null"`
	Payload    string             `gorm:"column:payload;not null"`
	FileName   string             `gorm:"column:file_name;not null"`
	StorageRef string             `gorm:"column:storage_ref;not null"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (Badge) TableName() string { return "badges" }

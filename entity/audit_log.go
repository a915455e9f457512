package entity

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	CollectionID string         `json:"collection_id" gorm:"not null;index"`
	Operation    string         `json:"operation" gorm:"not null;index"`
	Owner        string         `json:"owner" gorm:"not null;index"`
	Details      datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;autoCreateTime"`
}

package entity

import (
	"time"

	"gorm.io/datatypes"
)

// KVMetadata is the side metadata record for a (collection, key) pair.
// The remote store's own inline metadata slot is size-bounded; tags and
// custom metadata live here instead and are unbounded.
type KVMetadata struct {
	ID             uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	CollectionID   string         `json:"collection_id" gorm:"not null;uniqueIndex:idx_kv_metadata_collection_key"`
	KeyName        string         `json:"key_name" gorm:"type:varchar(512);not null;uniqueIndex:idx_kv_metadata_collection_key"`
	Tags           datatypes.JSON `json:"tags,omitempty" gorm:"type:jsonb"`
	CustomMetadata datatypes.JSON `json:"custom_metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

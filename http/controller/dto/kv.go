package dto

import "encoding/json"

type PutValueRequestDTO struct {
	Value          string          `json:"value" binding:"required"`
	TTLSeconds     int64           `json:"ttl_seconds,omitempty"`
	Expiration     int64           `json:"expiration,omitempty"`
	InlineMetadata json.RawMessage `json:"inline_metadata,omitempty"`
	CustomMetadata json.RawMessage `json:"custom_metadata,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
}

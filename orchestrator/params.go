package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/tnqbao/gau-kv-orchestrator/entity"
)

type CollisionPolicy string

const (
	PolicySkip      CollisionPolicy = "skip"
	PolicyOverwrite CollisionPolicy = "overwrite"
	PolicyFail      CollisionPolicy = "fail"
)

type ArtifactFormat string

const (
	FormatJSON   ArtifactFormat = "json"
	FormatNDJSON ArtifactFormat = "ndjson"
)

// ImportItem is one transient unit of an import/restore payload and the
// serialized unit of export/backup artifacts. InlineMetadata targets the
// remote store's bounded native slot; CustomMetadata and Tags go to the
// side metadata store.
type ImportItem struct {
	Name           string          `json:"name"`
	Value          string          `json:"value"`
	InlineMetadata json.RawMessage `json:"inline_metadata,omitempty"`
	CustomMetadata json.RawMessage `json:"custom_metadata,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	TTLSeconds     int64           `json:"ttl_seconds,omitempty"`
	Expiration     int64           `json:"expiration,omitempty"` // absolute unix seconds
}

type JobParams struct {
	// Item-list operations
	Keys               []string `json:"keys,omitempty"`
	TargetCollectionID string   `json:"target_collection_id,omitempty"` // bulk copy
	TTLSeconds         int64    `json:"ttl_seconds,omitempty"`          // ttl update
	Expiration         int64    `json:"expiration,omitempty"`           // ttl update, absolute
	Tags               []string `json:"tags,omitempty"`                 // tag update

	// Import / restore
	Items  []ImportItem    `json:"items,omitempty"`
	Policy CollisionPolicy `json:"policy,omitempty"`

	// Export / backup / restore
	Format       ArtifactFormat `json:"format,omitempty"`
	Prefix       string         `json:"prefix,omitempty"`
	ArtifactName string         `json:"artifact_name,omitempty"`

	// Batch operations
	CollectionIDs []string `json:"collection_ids,omitempty"`
}

func (p *JobParams) policyOrDefault() CollisionPolicy {
	if p.Policy == "" {
		return PolicyOverwrite
	}
	return p.Policy
}

func (p *JobParams) formatOrDefault() ArtifactFormat {
	if p.Format == "" {
		return FormatJSON
	}
	return p.Format
}

type SubmitRequest struct {
	OperationKind entity.OperationKind
	CollectionID  string
	Owner         string
	Params        JobParams
}

func (r *SubmitRequest) validate() error {
	if !r.OperationKind.Valid() {
		return fmt.Errorf("unknown operation kind %q", r.OperationKind)
	}
	if r.Owner == "" {
		return fmt.Errorf("owner is required")
	}

	switch r.OperationKind {
	case entity.OperationBatchBackup, entity.OperationBatchRestore:
		if len(r.Params.CollectionIDs) == 0 {
			return fmt.Errorf("%s requires at least one collection id", r.OperationKind)
		}
	default:
		if r.CollectionID == "" {
			return fmt.Errorf("%s requires a collection id", r.OperationKind)
		}
	}

	switch r.OperationKind {
	case entity.OperationBulkDelete, entity.OperationTTLUpdate, entity.OperationTagUpdate:
		if len(r.Params.Keys) == 0 {
			return fmt.Errorf("%s requires a key list", r.OperationKind)
		}
	case entity.OperationBulkCopy:
		if len(r.Params.Keys) == 0 {
			return fmt.Errorf("%s requires a key list", r.OperationKind)
		}
		if r.Params.TargetCollectionID == "" {
			return fmt.Errorf("%s requires a target collection id", r.OperationKind)
		}
		if r.Params.TargetCollectionID == r.CollectionID {
			return fmt.Errorf("%s target must differ from the source collection", r.OperationKind)
		}
	case entity.OperationImport:
		if len(r.Params.Items) == 0 {
			return fmt.Errorf("%s requires items", r.OperationKind)
		}
	case entity.OperationRestore:
		if r.Params.ArtifactName == "" {
			return fmt.Errorf("%s requires an artifact name", r.OperationKind)
		}
	}

	switch r.Params.Policy {
	case "", PolicySkip, PolicyOverwrite, PolicyFail:
	default:
		return fmt.Errorf("unknown collision policy %q", r.Params.Policy)
	}

	switch r.Params.Format {
	case "", FormatJSON, FormatNDJSON:
	default:
		return fmt.Errorf("unknown artifact format %q", r.Params.Format)
	}

	if r.OperationKind == entity.OperationTagUpdate && len(r.Params.Tags) == 0 {
		return fmt.Errorf("%s requires tags", r.OperationKind)
	}
	if r.OperationKind == entity.OperationTTLUpdate && r.Params.TTLSeconds <= 0 && r.Params.Expiration <= 0 {
		return fmt.Errorf("%s requires ttl_seconds or expiration", r.OperationKind)
	}

	return nil
}

package dto

import (
	"time"

	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"github.com/tnqbao/gau-kv-orchestrator/orchestrator"
)

type SubmitJobRequestDTO struct {
	OperationKind string                 `json:"operation_kind" binding:"required"`
	CollectionID  string                 `json:"collection_id"`
	Params        orchestrator.JobParams `json:"params"`
}

type JobResponseDTO struct {
	ID             string      `json:"id"`
	CollectionID   string      `json:"collection_id,omitempty"`
	OperationKind  string      `json:"operation_kind"`
	Status         string      `json:"status"`
	TotalItems     int         `json:"total_items"`
	ProcessedItems int         `json:"processed_items"`
	ErrorCount     int         `json:"error_count"`
	CurrentItem    string      `json:"current_item,omitempty"`
	Percentage     int         `json:"percentage"`
	Extra          interface{} `json:"extra,omitempty"`
	StartedAt      string      `json:"started_at"`
	CompletedAt    *string     `json:"completed_at,omitempty"`
}

func ToJobResponse(job *entity.Job) JobResponseDTO {
	resp := JobResponseDTO{
		ID:             job.ID,
		CollectionID:   job.CollectionID,
		OperationKind:  string(job.OperationKind),
		Status:         string(job.Status),
		TotalItems:     job.TotalItems,
		ProcessedItems: job.ProcessedItems,
		ErrorCount:     job.ErrorCount,
		CurrentItem:    job.CurrentItem,
		Percentage:     job.Percentage,
		StartedAt:      job.StartedAt.Format(time.RFC3339),
	}
	if len(job.Extra) > 0 {
		resp.Extra = job.Extra
	}
	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}

type JobEventResponseDTO struct {
	EventType string      `json:"event_type"`
	Timestamp string      `json:"timestamp"`
	Details   interface{} `json:"details,omitempty"`
}

func ToJobEventResponses(events []entity.JobEvent) []JobEventResponseDTO {
	out := make([]JobEventResponseDTO, 0, len(events))
	for _, event := range events {
		resp := JobEventResponseDTO{
			EventType: string(event.EventType),
			Timestamp: event.Timestamp.Format(time.RFC3339),
		}
		if len(event.Details) > 0 {
			resp.Details = event.Details
		}
		out = append(out, resp)
	}
	return out
}

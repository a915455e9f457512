package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-kv-orchestrator/entity"
)

func TestMilestoneEventsEmittedOnceInOrder(t *testing.T) {
	env := newTestEnv()

	pairs := make(map[string]string, 40)
	keys := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		key := fmt.Sprintf("key-%02d", i)
		pairs[key] = "v"
		keys = append(keys, key)
	}
	env.store.seed("col-1", pairs)

	job := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationTTLUpdate,
		CollectionID:  "col-1",
		Owner:         "user-1",
		Params:        JobParams{Keys: keys, TTLSeconds: 60},
	})

	require.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, []entity.JobEventType{
		entity.EventStarted,
		entity.EventProgress25,
		entity.EventProgress50,
		entity.EventProgress75,
		entity.EventCompleted,
	}, env.events.types(job.ID))
}

func TestPercentageNeverDecreases(t *testing.T) {
	env := newTestEnv()
	env.store.pageSize = 3
	env.store.seed("col-1", map[string]string{
		"a": "1", "b": "2", "c": "3", "d": "4", "e": "5",
		"f": "6", "g": "7", "h": "8", "i": "9", "j": "10",
	})

	job := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationExport,
		CollectionID:  "col-1",
		Owner:         "user-1",
	})

	require.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Percentage)

	history := env.jobs.percentages()
	require.NotEmpty(t, history)
	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i], history[i-1],
			"progress report %d regressed from %d to %d", i, history[i-1], history[i])
	}
}

func TestTerminalCountersAgreeWithFinalEvent(t *testing.T) {
	env := newTestEnv()
	env.store.seed("col-1", map[string]string{"a": "1", "b": "2"})

	job := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationTTLUpdate,
		CollectionID:  "col-1",
		Owner:         "user-1",
		Params:        JobParams{Keys: []string{"a", "b", "gone"}, TTLSeconds: 60},
	})

	require.Equal(t, entity.JobStatusCompleted, job.Status)

	completed, ok := env.events.find(job.ID, entity.EventCompleted)
	require.True(t, ok)
	var details struct {
		TotalItems     int `json:"total_items"`
		ProcessedItems int `json:"processed_items"`
		ErrorCount     int `json:"error_count"`
		Percentage     int `json:"percentage"`
	}
	require.NoError(t, json.Unmarshal(completed.Details, &details))

	assert.Equal(t, job.TotalItems, details.TotalItems)
	assert.Equal(t, job.ProcessedItems, details.ProcessedItems)
	assert.Equal(t, job.ErrorCount, details.ErrorCount)
	assert.Equal(t, 100, details.Percentage)
}

func TestEnumerationFailureFailsJobBeforeProcessing(t *testing.T) {
	env := newTestEnv()
	env.store.listErrs["col-1"] = assert.AnError

	job := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationExport,
		CollectionID:  "col-1",
		Owner:         "user-1",
	})

	require.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 0, job.ProcessedItems)

	failed, ok := env.events.find(job.ID, entity.EventFailed)
	require.True(t, ok)
	var details struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(failed.Details, &details))
	assert.Contains(t, details.Error, "enumerate")

	var extra struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(job.Extra, &extra))
	assert.NotEmpty(t, extra.Error)
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	env := newTestEnv()

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"unknown kind", SubmitRequest{OperationKind: "defragment", CollectionID: "c", Owner: "u"}},
		{"missing owner", SubmitRequest{OperationKind: entity.OperationExport, CollectionID: "c"}},
		{"missing collection", SubmitRequest{OperationKind: entity.OperationExport, Owner: "u"}},
		{"bulk delete without keys", SubmitRequest{OperationKind: entity.OperationBulkDelete, CollectionID: "c", Owner: "u"}},
		{"restore without artifact", SubmitRequest{OperationKind: entity.OperationRestore, CollectionID: "c", Owner: "u"}},
		{"batch without collections", SubmitRequest{OperationKind: entity.OperationBatchBackup, Owner: "u"}},
		{"bad policy", SubmitRequest{
			OperationKind: entity.OperationImport, CollectionID: "c", Owner: "u",
			Params: JobParams{Items: []ImportItem{{Name: "k", Value: "v"}}, Policy: "merge"},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.o.Submit(context.Background(), tc.req)
			assert.Error(t, err)
		})
	}
}

func TestCompletedJobPublishesAuditRecord(t *testing.T) {
	env := newTestEnv()
	env.store.seed("col-1", map[string]string{"a": "1"})

	job := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationBulkDelete,
		CollectionID:  "col-1",
		Owner:         "user-1",
		Params:        JobParams{Keys: []string{"a"}},
	})
	require.Equal(t, entity.JobStatusCompleted, job.Status)

	records := env.audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, "col-1", records[0].CollectionID)
	assert.Equal(t, "bulk_delete", records[0].Operation)
	assert.Equal(t, "user-1", records[0].Owner)
}

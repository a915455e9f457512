package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-kv-orchestrator/entity"
)

func TestImportOverwritesExistingKeysByDefault(t *testing.T) {
	env := newTestEnv()
	env.store.seed("col-1", map[string]string{"a": "old"})

	job := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationImport,
		CollectionID:  "col-1",
		Owner:         "user-1",
		Params: JobParams{
			Items: []ImportItem{
				{Name: "a", Value: "new"},
				{Name: "b", Value: "fresh", Tags: []string{"imported"}},
			},
		},
	})

	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.ProcessedItems)
	assert.Equal(t, 0, job.ErrorCount)

	v, _ := env.store.get("col-1", "a")
	assert.Equal(t, "new", v)
	v, _ = env.store.get("col-1", "b")
	assert.Equal(t, "fresh", v)

	// Every written key gets a side metadata record, tagged or not.
	_, ok := env.metadata.get("col-1", "a")
	assert.True(t, ok)
	record, ok := env.metadata.get("col-1", "b")
	require.True(t, ok)
	assert.JSONEq(t, `["imported"]`, string(record.Tags))
}

func TestImportSkipPolicyLeavesExistingValues(t *testing.T) {
	env := newTestEnv()
	env.store.seed("col-1", map[string]string{"a": "old"})

	job := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationImport,
		CollectionID:  "col-1",
		Owner:         "user-1",
		Params: JobParams{
			Policy: PolicySkip,
			Items: []ImportItem{
				{Name: "a", Value: "new"},
				{Name: "b", Value: "fresh"},
			},
		},
	})

	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.ProcessedItems)
	assert.Equal(t, 0, job.ErrorCount)

	v, _ := env.store.get("col-1", "a")
	assert.Equal(t, "old", v, "skip must not touch the existing value")
	v, _ = env.store.get("col-1", "b")
	assert.Equal(t, "fresh", v)

	completed, ok := env.events.find(job.ID, entity.EventCompleted)
	require.True(t, ok)
	var details struct {
		SkippedItems int `json:"skipped_items"`
	}
	require.NoError(t, json.Unmarshal(completed.Details, &details))
	assert.Equal(t, 1, details.SkippedItems)
}

func TestImportFailPolicyAbortsOnFirstCollision(t *testing.T) {
	env := newTestEnv()
	env.store.seed("col-1", map[string]string{"b": "old"})

	job := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationImport,
		CollectionID:  "col-1",
		Owner:         "user-1",
		Params: JobParams{
			Policy: PolicyFail,
			Items: []ImportItem{
				{Name: "a", Value: "first"},
				{Name: "b", Value: "collides"},
				{Name: "c", Value: "never-written"},
			},
		},
	})

	assert.Equal(t, entity.JobStatusFailed, job.Status)

	// Collision aborts the chunk before any of its writes happen.
	_, ok := env.store.get("col-1", "a")
	assert.False(t, ok)
	v, _ := env.store.get("col-1", "b")
	assert.Equal(t, "old", v)
	_, ok = env.store.get("col-1", "c")
	assert.False(t, ok)

	var extra struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(job.Extra, &extra))
	assert.Contains(t, extra.Error, "already exists")
}

func TestImportIsIdempotentUnderOverwrite(t *testing.T) {
	env := newTestEnv()
	items := []ImportItem{
		{Name: "a", Value: "v1"},
		{Name: "b", Value: "v2"},
	}

	first := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationImport,
		CollectionID:  "col-1",
		Owner:         "user-1",
		Params:        JobParams{Items: items},
	})
	second := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationImport,
		CollectionID:  "col-1",
		Owner:         "user-1",
		Params:        JobParams{Items: items},
	})

	assert.Equal(t, entity.JobStatusCompleted, first.Status)
	assert.Equal(t, entity.JobStatusCompleted, second.Status)
	assert.Equal(t, first.ProcessedItems, second.ProcessedItems)

	v, _ := env.store.get("col-1", "a")
	assert.Equal(t, "v1", v)
}

func TestImportBulkWriteFailureCountsItemsAndContinues(t *testing.T) {
	env := newTestEnv()
	env.store.failBulkPut["col-1"] = assert.AnError

	job := env.submitAndWait(t, SubmitRequest{
		OperationKind: entity.OperationImport,
		CollectionID:  "col-1",
		Owner:         "user-1",
		Params: JobParams{
			Items: []ImportItem{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}},
		},
	})

	// Item failures never fail the job; they surface in the counters.
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 0, job.ProcessedItems)
	assert.Equal(t, 2, job.ErrorCount)
	assert.Equal(t, 100, job.Percentage)
}

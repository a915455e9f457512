package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"github.com/tnqbao/gau-kv-orchestrator/infra"
	"gorm.io/datatypes"
)

// In-memory fakes for the engine's collaborators. Every fake is safe for
// the coordinator goroutine and the test goroutine to touch concurrently.

type fakeStore struct {
	mu       sync.Mutex
	values   map[string]map[string]string
	lastOpts map[string]*infra.WriteOptions

	pageSize    int
	failGets    map[string]error
	failBulkPut map[string]error
	listErrs    map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:      make(map[string]map[string]string),
		lastOpts:    make(map[string]*infra.WriteOptions),
		pageSize:    1000,
		failGets:    make(map[string]error),
		failBulkPut: make(map[string]error),
		listErrs:    make(map[string]error),
	}
}

func (s *fakeStore) seed(collectionID string, pairs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[collectionID] == nil {
		s.values[collectionID] = make(map[string]string)
	}
	for k, v := range pairs {
		s.values[collectionID][k] = v
	}
}

func (s *fakeStore) get(collectionID, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[collectionID][key]
	return v, ok
}

func (s *fakeStore) GetValue(ctx context.Context, collectionID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failGets[collectionID+"/"+key]; ok {
		return "", err
	}
	v, ok := s.values[collectionID][key]
	if !ok {
		return "", infra.ErrKeyNotFound
	}
	return v, nil
}

func (s *fakeStore) PutValue(ctx context.Context, collectionID, key, value string, opts *infra.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[collectionID] == nil {
		s.values[collectionID] = make(map[string]string)
	}
	s.values[collectionID][key] = value
	s.lastOpts[collectionID+"/"+key] = opts
	return nil
}

func (s *fakeStore) BulkPut(ctx context.Context, collectionID string, items []infra.BulkWriteItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failBulkPut[collectionID]; ok {
		return err
	}
	if s.values[collectionID] == nil {
		s.values[collectionID] = make(map[string]string)
	}
	for _, item := range items {
		s.values[collectionID][item.Key] = item.Value
	}
	return nil
}

func (s *fakeStore) BulkDelete(ctx context.Context, collectionID string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values[collectionID], key)
	}
	return nil
}

func (s *fakeStore) ListKeys(ctx context.Context, collectionID, prefix, cursor string) (*infra.KeyListPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.listErrs[collectionID]; ok {
		return nil, err
	}

	var keys []string
	for k := range s.values[collectionID] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + s.pageSize
	if end >= len(keys) {
		return &infra.KeyListPage{Keys: keys[start:], ListComplete: true}, nil
	}
	return &infra.KeyListPage{Keys: keys[start:end], Cursor: strconv.Itoa(end)}, nil
}

type fakeJobs struct {
	mu      sync.Mutex
	jobs    map[string]*entity.Job
	history []int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]*entity.Job)}
}

func (j *fakeJobs) get(id string) *entity.Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func (j *fakeJobs) percentages() []int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]int(nil), j.history...)
}

func (j *fakeJobs) Create(job *entity.Job) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	copied := *job
	j.jobs[job.ID] = &copied
	return nil
}

func (j *fakeJobs) FindByID(id string) (*entity.Job, error) {
	job := j.get(id)
	if job == nil {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return job, nil
}

func (j *fakeJobs) MarkRunning(id string, startedAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs[id].Status = entity.JobStatusRunning
	j.jobs[id].StartedAt = startedAt
	return nil
}

func (j *fakeJobs) UpdateTotal(id string, totalItems int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs[id].TotalItems = totalItems
	return nil
}

func (j *fakeJobs) UpdateProgress(id string, processed, errorCount, percentage int, currentItem string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	job := j.jobs[id]
	job.ProcessedItems = processed
	job.ErrorCount = errorCount
	job.Percentage = percentage
	job.CurrentItem = currentItem
	j.history = append(j.history, percentage)
	return nil
}

func (j *fakeJobs) UpdateExtra(id string, extra datatypes.JSON) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs[id].Extra = extra
	return nil
}

func (j *fakeJobs) MarkTerminal(id string, status entity.JobStatus, processed, errorCount, percentage int, completedAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	job := j.jobs[id]
	job.Status = status
	job.ProcessedItems = processed
	job.ErrorCount = errorCount
	job.Percentage = percentage
	job.CompletedAt = &completedAt
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []entity.JobEvent
	seen   map[string]bool
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{seen: make(map[string]bool)}
}

func (e *fakeEvents) Append(jobID string, eventType entity.JobEventType, owner string, details datatypes.JSON) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := jobID + "/" + string(eventType)
	if e.seen[key] {
		return nil
	}
	e.seen[key] = true
	e.events = append(e.events, entity.JobEvent{
		JobID:     jobID,
		EventType: eventType,
		Owner:     owner,
		Timestamp: time.Now().UTC(),
		Details:   details,
	})
	return nil
}

func (e *fakeEvents) find(jobID string, eventType entity.JobEventType) (entity.JobEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, event := range e.events {
		if event.JobID == jobID && event.EventType == eventType {
			return event, true
		}
	}
	return entity.JobEvent{}, false
}

func (e *fakeEvents) types(jobID string) []entity.JobEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	var types []entity.JobEventType
	for _, event := range e.events {
		if event.JobID == jobID {
			types = append(types, event.EventType)
		}
	}
	return types
}

type fakeMetadata struct {
	mu      sync.Mutex
	records map[string]entity.KVMetadata
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{records: make(map[string]entity.KVMetadata)}
}

func (m *fakeMetadata) Upsert(collectionID, keyName string, tags, customMetadata datatypes.JSON) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[collectionID+"/"+keyName] = entity.KVMetadata{
		CollectionID:   collectionID,
		KeyName:        keyName,
		Tags:           tags,
		CustomMetadata: customMetadata,
	}
	return nil
}

func (m *fakeMetadata) FindByKeys(collectionID string, keyNames []string) ([]entity.KVMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []entity.KVMetadata
	for _, key := range keyNames {
		if record, ok := m.records[collectionID+"/"+key]; ok {
			records = append(records, record)
		}
	}
	return records, nil
}

func (m *fakeMetadata) DeleteByKeys(collectionID string, keyNames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keyNames {
		delete(m.records, collectionID+"/"+key)
	}
	return nil
}

func (m *fakeMetadata) get(collectionID, keyName string) (entity.KVMetadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[collectionID+"/"+keyName]
	return record, ok
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	entries map[string][]infra.ArchiveEntry
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		objects: make(map[string][]byte),
		entries: make(map[string][]infra.ArchiveEntry),
	}
}

func (a *fakeArchive) PutArtifact(ctx context.Context, collectionID, name string, data []byte, contentType string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	objectName := collectionID + "/" + name
	a.objects[objectName] = append([]byte(nil), data...)
	// Newest first, matching the archive client.
	a.entries[collectionID] = append([]infra.ArchiveEntry{{
		Name:         objectName,
		Size:         int64(len(data)),
		LastModified: time.Now().UTC(),
	}}, a.entries[collectionID]...)
	return objectName, nil
}

func (a *fakeArchive) GetArtifact(ctx context.Context, objectName string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return append([]byte(nil), data...), nil
}

func (a *fakeArchive) ListArtifacts(ctx context.Context, collectionID string) ([]infra.ArchiveEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]infra.ArchiveEntry(nil), a.entries[collectionID]...), nil
}

type fakeStage struct {
	mu      sync.Mutex
	staged  map[string][]byte
	expires map[string]time.Duration
}

func newFakeStage() *fakeStage {
	return &fakeStage{staged: make(map[string][]byte), expires: make(map[string]time.Duration)}
}

func (s *fakeStage) SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[key] = append([]byte(nil), value...)
	s.expires[key] = expiration
	return nil
}

func (s *fakeStage) TakeBytes(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.staged[key]
	if !ok {
		return nil, infra.ErrCacheMiss
	}
	delete(s.staged, key)
	return data, nil
}

type auditRecord struct {
	CollectionID string
	Operation    string
	Owner        string
	Details      json.RawMessage
}

type fakeAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (a *fakeAudit) PublishRecord(ctx context.Context, collectionID, operation, owner string, details json.RawMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, auditRecord{collectionID, operation, owner, details})
	return nil
}

func (a *fakeAudit) all() []auditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]auditRecord(nil), a.records...)
}

type fakeLocks struct {
	mu    sync.Mutex
	locks map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{locks: make(map[string]bool)}
}

func (l *fakeLocks) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[key] {
		return false, nil
	}
	l.locks[key] = true
	return true, nil
}

func (l *fakeLocks) Delete(ctx context.Context, keys ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range keys {
		delete(l.locks, key)
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) InfoWithContextf(ctx context.Context, format string, args ...interface{})    {}
func (nopLogger) WarningWithContextf(ctx context.Context, format string, args ...interface{}) {}
func (nopLogger) ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{}) {
}

type testEnv struct {
	store    *fakeStore
	jobs     *fakeJobs
	events   *fakeEvents
	metadata *fakeMetadata
	archive  *fakeArchive
	stage    *fakeStage
	audit    *fakeAudit
	o        *Orchestrator
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newFakeStore(),
		jobs:     newFakeJobs(),
		events:   newFakeEvents(),
		metadata: newFakeMetadata(),
		archive:  newFakeArchive(),
		stage:    newFakeStage(),
		audit:    &fakeAudit{},
	}
	env.o = NewOrchestrator(Dependencies{
		Jobs:     env.jobs,
		Events:   env.events,
		Metadata: env.metadata,
		Store:    env.store,
		Archive:  env.archive,
		Stage:    env.stage,
		Audit:    env.audit,
		Locks:    newFakeLocks(),
		Logger:   nopLogger{},
	}, time.Hour)
	return env
}

// submitAndWait submits the job and blocks until its coordinator reaches a
// terminal status, then returns the final persisted row.
func (env *testEnv) submitAndWait(t *testing.T, req SubmitRequest) *entity.Job {
	t.Helper()

	job, err := env.o.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusQueued, job.Status)

	// A released coordinator has fully finished, terminal events included.
	require.Eventually(t, func() bool {
		current := env.jobs.get(job.ID)
		return current != nil && current.Status.Terminal() && len(env.o.ActiveJobs()) == 0
	}, 5*time.Second, 2*time.Millisecond)

	return env.jobs.get(job.ID)
}

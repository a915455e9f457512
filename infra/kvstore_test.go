package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*KVStoreClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := &KVStoreClient{
		Endpoint:   server.URL,
		APIToken:   "test-token",
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
	return client, server
}

func TestGetValueSendsBearerToken(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/collections/col-1/values/my-key", r.URL.Path)
		fmt.Fprint(w, "the-value")
	}))
	defer server.Close()

	value, err := client.GetValue(context.Background(), "col-1", "my-key")
	require.NoError(t, err)
	assert.Equal(t, "the-value", value)
}

func TestGetValueReportsMissingKey(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := client.GetValue(context.Background(), "col-1", "gone")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBulkPutRejectsOversizedBatchLocally(t *testing.T) {
	called := false
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	items := make([]BulkWriteItem, BulkWriteLimit+1)
	for i := range items {
		items[i] = BulkWriteItem{Key: fmt.Sprintf("k%d", i), Value: "v"}
	}

	err := client.BulkPut(context.Background(), "col-1", items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
	assert.False(t, called, "an oversized batch must never reach the remote store")
}

func TestBulkDeletePostsKeyList(t *testing.T) {
	var received []string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/collections/col-1/bulk/delete", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := client.BulkDelete(context.Background(), "col-1", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, received)
}

func TestListKeysWalksCursorPages(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		assert.Equal(t, "user:", r.URL.Query().Get("prefix"))

		var page KeyListPage
		switch r.URL.Query().Get("cursor") {
		case "":
			page = KeyListPage{Keys: []string{"user:1", "user:2"}, Cursor: "next-page"}
		case "next-page":
			page = KeyListPage{Keys: []string{"user:3"}, ListComplete: true}
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
		require.NoError(t, json.NewEncoder(w).Encode(page))
	}))
	defer server.Close()

	first, err := client.ListKeys(context.Background(), "col-1", "user:", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1", "user:2"}, first.Keys)
	assert.False(t, first.ListComplete)

	second, err := client.ListKeys(context.Background(), "col-1", "user:", first.Cursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:3"}, second.Keys)
	assert.True(t, second.ListComplete)
}

func TestRemoteErrorIncludesBodySnippet(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "rate limit exceeded")
	}))
	defer server.Close()

	_, err := client.GetValue(context.Background(), "col-1", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestListCollections(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/collections", r.URL.Path)
		fmt.Fprint(w, `{"collections":[{"id":"col-1","title":"Sessions"}]}`)
	}))
	defer server.Close()

	collections, err := client.ListCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, "col-1", collections[0].ID)
	assert.Equal(t, "Sessions", collections[0].Title)
}

package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tnqbao/gau-kv-orchestrator/config"
)

// Remote store request limits, per the service's API documentation.
const (
	BulkWriteLimit  = 10000 // items per bulk put request
	BulkDeleteLimit = 10000 // keys per bulk delete request
	KeyListPageSize = 1000  // keys per listing page
)

// ErrKeyNotFound is reported when the remote store has no value for a key.
var ErrKeyNotFound = errors.New("key not found in remote store")

// KVStoreClient is a thin authenticated wrapper around the remote
// rate/size-limited key-value service. It performs no retries: failed
// items are accounted by the caller.
type KVStoreClient struct {
	Endpoint   string
	APIToken   string
	HTTPClient *http.Client
}

func InitKVStoreClient(cfg *config.EnvConfig) *KVStoreClient {
	if cfg.KVStore.Endpoint == "" {
		panic("KV store endpoint is not configured")
	}

	return &KVStoreClient{
		Endpoint: cfg.KVStore.Endpoint,
		APIToken: cfg.KVStore.APIToken,
		HTTPClient: &http.Client{
			Timeout: time.Duration(cfg.KVStore.RequestTimeout) * time.Second,
		},
	}
}

// WriteOptions carries the optional attributes of a single value write.
// Metadata is the remote store's size-bounded inline slot; unbounded
// metadata belongs in the side metadata store instead.
type WriteOptions struct {
	TTLSeconds int64           `json:"ttl_seconds,omitempty"`
	Expiration int64           `json:"expiration,omitempty"` // absolute unix seconds
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type BulkWriteItem struct {
	Key        string          `json:"key"`
	Value      string          `json:"value"`
	TTLSeconds int64           `json:"ttl_seconds,omitempty"`
	Expiration int64           `json:"expiration,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type KeyListPage struct {
	Keys         []string `json:"keys"`
	Cursor       string   `json:"cursor,omitempty"`
	ListComplete bool     `json:"list_complete"`
}

type Collection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (kv *KVStoreClient) GetValue(ctx context.Context, collectionID, key string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/collections/%s/values/%s",
		kv.Endpoint, url.PathEscape(collectionID), url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	kv.setAuth(req)

	resp, err := kv.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get value for key %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrKeyNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", remoteError("get value", resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read value for key %s: %w", key, err)
	}
	return string(body), nil
}

func (kv *KVStoreClient) PutValue(ctx context.Context, collectionID, key, value string, opts *WriteOptions) error {
	endpoint := fmt.Sprintf("%s/v1/collections/%s/values/%s",
		kv.Endpoint, url.PathEscape(collectionID), url.PathEscape(key))

	payload := struct {
		Value string `json:"value"`
		*WriteOptions
	}{Value: value, WriteOptions: opts}
	if opts == nil {
		payload.WriteOptions = &WriteOptions{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	kv.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := kv.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to put value for key %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return remoteError("put value", resp)
	}
	return nil
}

func (kv *KVStoreClient) BulkPut(ctx context.Context, collectionID string, items []BulkWriteItem) error {
	if len(items) == 0 {
		return nil
	}
	if len(items) > BulkWriteLimit {
		return fmt.Errorf("bulk put of %d items exceeds the %d item request limit", len(items), BulkWriteLimit)
	}

	endpoint := fmt.Sprintf("%s/v1/collections/%s/bulk", kv.Endpoint, url.PathEscape(collectionID))

	body, err := json.Marshal(items)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	kv.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := kv.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to bulk put %d items: %w", len(items), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return remoteError("bulk put", resp)
	}
	return nil
}

func (kv *KVStoreClient) BulkDelete(ctx context.Context, collectionID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if len(keys) > BulkDeleteLimit {
		return fmt.Errorf("bulk delete of %d keys exceeds the %d key request limit", len(keys), BulkDeleteLimit)
	}

	endpoint := fmt.Sprintf("%s/v1/collections/%s/bulk/delete", kv.Endpoint, url.PathEscape(collectionID))

	body, err := json.Marshal(keys)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	kv.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := kv.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to bulk delete %d keys: %w", len(keys), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return remoteError("bulk delete", resp)
	}
	return nil
}

// ListKeys returns one page of key names. Pass the page's cursor back in
// until ListComplete is reported.
func (kv *KVStoreClient) ListKeys(ctx context.Context, collectionID, prefix, cursor string) (*KeyListPage, error) {
	endpoint := fmt.Sprintf("%s/v1/collections/%s/keys", kv.Endpoint, url.PathEscape(collectionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	kv.setAuth(req)

	query := req.URL.Query()
	query.Set("limit", fmt.Sprintf("%d", KeyListPageSize))
	if prefix != "" {
		query.Set("prefix", prefix)
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	req.URL.RawQuery = query.Encode()

	resp, err := kv.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError("list keys", resp)
	}

	var page KeyListPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode key listing: %w", err)
	}
	return &page, nil
}

func (kv *KVStoreClient) ListCollections(ctx context.Context) ([]Collection, error) {
	endpoint := fmt.Sprintf("%s/v1/collections", kv.Endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	kv.setAuth(req)

	resp, err := kv.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError("list collections", resp)
	}

	var result struct {
		Collections []Collection `json:"collections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode collection listing: %w", err)
	}
	return result.Collections, nil
}

func (kv *KVStoreClient) DeleteValue(ctx context.Context, collectionID, key string) error {
	endpoint := fmt.Sprintf("%s/v1/collections/%s/values/%s",
		kv.Endpoint, url.PathEscape(collectionID), url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	kv.setAuth(req)

	resp, err := kv.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrKeyNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return remoteError("delete value", resp)
	}
	return nil
}

func (kv *KVStoreClient) setAuth(req *http.Request) {
	if kv.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+kv.APIToken)
	}
}

func remoteError(operation string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("remote store %s failed with status %d: %s", operation, resp.StatusCode, string(snippet))
}

package infra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tnqbao/gau-kv-orchestrator/config"
)

// MinioClient is the snapshot archive. Backup artifacts are stored as
// <collection>/<artifact name> objects inside the archive bucket.
type MinioClient struct {
	Admin    *madmin.AdminClient
	Client   *minio.Client
	Endpoint string
	Bucket   string
}

type ArchiveEntry struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type ArchiveUsage struct {
	ObjectsCount uint64 `json:"objects_count"`
	TotalSize    uint64 `json:"total_size"`
	BucketsCount uint64 `json:"buckets_count"`
}

func InitMinioClient(cfg *config.EnvConfig) *MinioClient {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		panic("MinIO endpoint is not configured")
	}

	rootUser := cfg.Minio.RootUser
	if rootUser == "" {
		panic("MinIO root user is not configured")
	}

	rootPassword := cfg.Minio.RootPassword
	if rootPassword == "" {
		panic("MinIO root password is not configured")
	}

	madminClient, err := madmin.New(endpoint, rootUser, rootPassword, false)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO admin client: %v", err))
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(rootUser, rootPassword, ""),
		Secure: false,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO client: %v", err))
	}

	client := &MinioClient{
		Admin:    madminClient,
		Client:   minioClient,
		Endpoint: endpoint,
		Bucket:   cfg.Minio.ArchiveBucket,
	}

	if err := client.EnsureBucket(context.Background(), client.Bucket); err != nil {
		panic(fmt.Sprintf("Failed to ensure archive bucket: %v", err))
	}

	return client
}

// EnsureBucket creates a bucket if it doesn't exist
func (m *MinioClient) EnsureBucket(ctx context.Context, bucketName string) error {
	exists, err := m.Client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err := m.Client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: "us-east-1"})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// PutArtifact stores a serialized snapshot under the collection's prefix.
func (m *MinioClient) PutArtifact(ctx context.Context, collectionID, name string, data []byte, contentType string) (string, error) {
	if collectionID == "" || name == "" {
		return "", fmt.Errorf("collectionID and name cannot be empty")
	}

	objectName := collectionID + "/" + name
	_, err := m.Client.PutObject(ctx, m.Bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to store archive artifact %s: %w", objectName, err)
	}

	return objectName, nil
}

// GetArtifact loads a previously stored snapshot by its object name.
func (m *MinioClient) GetArtifact(ctx context.Context, objectName string) ([]byte, error) {
	if objectName == "" {
		return nil, fmt.Errorf("objectName cannot be empty")
	}

	object, err := m.Client.GetObject(ctx, m.Bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive artifact %s: %w", objectName, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive artifact %s: %w", objectName, err)
	}
	return data, nil
}

func (m *MinioClient) RemoveArtifact(ctx context.Context, objectName string) error {
	if objectName == "" {
		return fmt.Errorf("objectName cannot be empty")
	}

	err := m.Client.RemoveObject(ctx, m.Bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to remove archive artifact %s: %w", objectName, err)
	}
	return nil
}

// ListArtifacts returns the snapshots stored for a collection, newest first.
func (m *MinioClient) ListArtifacts(ctx context.Context, collectionID string) ([]ArchiveEntry, error) {
	if collectionID == "" {
		return nil, fmt.Errorf("collectionID cannot be empty")
	}

	objectCh := m.Client.ListObjects(ctx, m.Bucket, minio.ListObjectsOptions{
		Prefix:    collectionID + "/",
		Recursive: true,
	})

	var entries []ArchiveEntry
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list archive artifacts: %w", object.Err)
		}
		entries = append(entries, ArchiveEntry{
			Name:         object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastModified.After(entries[j].LastModified)
	})

	return entries, nil
}

// Usage reports archive-wide storage usage through the admin API.
func (m *MinioClient) Usage(ctx context.Context) (*ArchiveUsage, error) {
	info, err := m.Admin.DataUsageInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive usage info: %w", err)
	}

	return &ArchiveUsage{
		ObjectsCount: info.ObjectsTotalCount,
		TotalSize:    info.ObjectsTotalSize,
		BucketsCount: info.BucketsCount,
	}, nil
}

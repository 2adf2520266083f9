package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
)

// BucketStats summarises a listing.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// List enumerates every object under prefix.
func (m *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	objectCh := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, ErrUnavailable.New("list %s: %v", prefix, object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	return objects, nil
}

// Stats folds a listing into totals.
func Stats(objects []ObjectInfo) BucketStats {
	var stats BucketStats
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
	}
	return stats
}

// PrintListing writes a listing and its totals to w.
func PrintListing(w io.Writer, prefix string, objects []ObjectInfo) {
	stats := Stats(objects)
	fmt.Fprintf(w, "prefix: %s\n", prefix)
	fmt.Fprintf(w, "objects: %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "size: %s\n", formatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(w, "last modified: %s\n", stats.LastModified.Format(time.RFC3339))
	}
	for _, obj := range objects {
		fmt.Fprintf(w, "  %s  %s\n", formatSize(obj.Size), obj.Key)
	}
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

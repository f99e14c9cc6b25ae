package pipeline

import (
	"context"

	"github.com/s3invsync/s3invsync/internal/manifest"
	"github.com/s3invsync/s3invsync/internal/s3client"
)

// S3Source adapts an *s3client.InventorySession to ShardSource.
type S3Source struct {
	Session *s3client.InventorySession
}

// DownloadInventoryCSV satisfies ShardSource.
func (s S3Source) DownloadInventoryCSV(ctx context.Context, spec manifest.FileSpec) (RowIterator, error) {
	return s.Session.DownloadInventoryCSV(ctx, spec)
}

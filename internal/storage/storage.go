package storage

import (
	"context"
	"io"
)

// Logical buckets. Each maps to a key prefix inside the physical bucket.
const (
	BucketRegions       = "regions"
	BucketCountries     = "countries"
	BucketProfileImages = "profile-images"
)

// BlobStore is the media store boundary: named binary blobs addressed by
// logical bucket and key, with a deterministic public URL per stored object.
type BlobStore interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
	PublicURL(bucket, key string) string
}

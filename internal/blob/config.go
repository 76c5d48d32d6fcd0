// Package blob is a thin S3-compatible object storage client adapted
// from the sync relay's blob store client into one side of a
// cloudsync.CloudProvider (internal/cloudsync/providers.S3Provider).
package blob

// S3BlobConfig names the bucket and credentials a cloud sync provider
// uploads workspace files to and downloads them from.
type S3BlobConfig struct {
	BucketName    string
	Region        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	UseAccelerate bool
}

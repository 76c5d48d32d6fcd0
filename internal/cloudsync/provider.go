package cloudsync

import "context"

// CloudProvider is the seam between cloudsync's reconcile/execute
// algorithm and one concrete remote backend (spec §4.10). Implementations
// live in internal/cloudsync/providers.
type CloudProvider interface {
	// ID identifies this provider instance for manifest storage (e.g.
	// "s3://bucket/prefix").
	ID() string

	// ListRemote returns every file currently present on the remote.
	ListRemote(ctx context.Context) ([]RemoteFileInfo, error)

	// Upload writes content to path on the remote, returning the
	// resulting RemoteFileInfo (with whatever version/etag the remote
	// assigned).
	Upload(ctx context.Context, path string, content []byte, modifiedAtMs int64) (RemoteFileInfo, error)

	// Download fetches path's current content from the remote.
	Download(ctx context.Context, path string) ([]byte, error)

	// DeleteRemote removes path from the remote. Not an error if the
	// path is already absent.
	DeleteRemote(ctx context.Context, path string) error
}

// IncrementalProvider is an optional CloudProvider capability: providers
// that can report only what changed since a prior Cursor (S3 versioning
// tokens, a change-feed cursor) implement this to avoid a full
// ListRemote on every sync.
type IncrementalProvider interface {
	CloudProvider

	// IncrementalChanges returns the changes (and a new cursor) since
	// cursor. An empty cursor means "since the beginning" and is
	// equivalent to a full ListRemote recast as Created changes.
	IncrementalChanges(ctx context.Context, cursor string) (changes []RemoteChange, nextCursor string, err error)
}

package port

import "context"

// SourceResolver turns an opaque source_ref from the external transport into
// a local file inside destDir. The returned path lives in the job's scratch
// directory and is removed with it.
type SourceResolver interface {
	Resolve(ctx context.Context, sourceRef, destDir string) (string, error)
}

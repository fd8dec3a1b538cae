package attach

import "context"

// Result is the outcome of one transport call. Failure is data, not an
// error: the engine folds it into the attachment's state rather than
// propagating it up the call stack.
type Result struct {
	OK       bool
	RemoteID string
	// RemoteURI is the displayable preview location assigned by the store.
	RemoteURI string
	// Message is the user-facing failure reason when OK is false.
	Message string
}

// Failure builds a failed Result.
func Failure(message string) Result {
	return Result{Message: message}
}

// Uploader is the binary-upload transport boundary. The engine guarantees at
// most one outstanding call per attachment id. Cancelling ctx is advisory to
// the implementation (best-effort abort); the engine discards the eventual
// completion of a deleted attachment regardless.
type Uploader interface {
	Upload(ctx context.Context, src Source, category Category) Result
}

// Previewer produces and releases local previews for selected files.
type Previewer interface {
	// Measure returns the pixel dimensions of the file.
	Measure(src Source) (Dimensions, error)
	// CreatePreview returns a displayable local URI for the file.
	CreatePreview(src Source) (string, error)
	// Release frees the resource behind a previously created local URI.
	Release(uri string)
}

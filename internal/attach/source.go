package attach

import (
	"os"
	"path/filepath"
)

type bytesSource struct {
	name        string
	contentType string
	data        []byte
}

// NewBytesSource wraps an already-read file body as a Source. Handlers use
// this for multipart uploads, which arrive fully buffered.
func NewBytesSource(name, contentType string, data []byte) Source {
	return &bytesSource{name: name, contentType: contentType, data: data}
}

func (s *bytesSource) Bytes() ([]byte, error) { return s.data, nil }
func (s *bytesSource) Name() string           { return s.name }
func (s *bytesSource) ContentType() string    { return s.contentType }

type fileSource struct {
	path        string
	contentType string
}

// NewFileSource wraps a file on disk as a Source. The file is re-read on
// each Bytes call rather than held in memory.
func NewFileSource(path, contentType string) Source {
	return &fileSource{path: path, contentType: contentType}
}

func (s *fileSource) Bytes() ([]byte, error) { return os.ReadFile(s.path) }
func (s *fileSource) Name() string           { return filepath.Base(s.path) }
func (s *fileSource) ContentType() string    { return s.contentType }

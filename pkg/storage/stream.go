package storage

import "io"

// Stream is an open file handle of a FileSystem.
type Stream interface {
	io.ReadWriteSeeker
	io.Closer
	// Sync commits written data to the storage.
	Sync() error
}

// FileSystem opens streams.
type FileSystem interface {
	// OpenStream opens path. A non-nil Stream returned together with an
	// error must still be closed.
	OpenStream(path string, access AccessMode, mode OpenMode) (Stream, error)
}

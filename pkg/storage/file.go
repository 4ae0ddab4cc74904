package storage

import (
	"io"

	"github.com/golang/glog"
)

// DefaultBufferSize is the buffer size of a BufferedFile.
const DefaultBufferSize = 512

// BufferedFile buffers reads and writes on a Stream.
// At any time it holds either unread data or pending writes, never both.
// It is not safe for concurrent use.
type BufferedFile struct {
	stream Stream
	buf    []byte
	// buf[r:w] holds data read ahead of the logical position.
	r, w int
	// buf[:pending] holds data written at the stream position.
	pending int
}

// NewBufferedFile wraps an open stream.
func NewBufferedFile(stream Stream) *BufferedFile {
	return &BufferedFile{stream: stream, buf: make([]byte, DefaultBufferSize)}
}

// Read implements io.Reader.
func (f *BufferedFile) Read(p []byte) (int, error) {
	if f.stream == nil {
		return 0, ErrorNotReady
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := f.flushWrites(); err != nil {
		return 0, err
	}
	if f.r == f.w {
		if len(p) >= len(f.buf) {
			return f.stream.Read(p)
		}
		n, err := f.stream.Read(f.buf)
		f.r, f.w = 0, n
		if n == 0 {
			return 0, err
		}
	}
	n := copy(p, f.buf[f.r:f.w])
	f.r += n
	return n, nil
}

// Write implements io.Writer. Data reaches the stream on Flush, Seek,
// Close or when the buffer fills.
func (f *BufferedFile) Write(p []byte) (int, error) {
	if f.stream == nil {
		return 0, ErrorNotReady
	}
	if err := f.dropReadAhead(); err != nil {
		return 0, err
	}
	var written int
	for len(p) > 0 {
		n := copy(f.buf[f.pending:], p)
		f.pending += n
		written += n
		p = p[n:]
		if f.pending == len(f.buf) {
			if err := f.flushWrites(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Seek implements io.Seeker.
func (f *BufferedFile) Seek(offset int64, whence int) (int64, error) {
	if f.stream == nil {
		return 0, ErrorNotReady
	}
	if err := f.flushWrites(); err != nil {
		return 0, err
	}
	if whence == io.SeekCurrent {
		offset -= int64(f.w - f.r)
	}
	f.r, f.w = 0, 0
	return f.stream.Seek(offset, whence)
}

// Rewind moves to the start of the file.
func (f *BufferedFile) Rewind() error {
	return Rewind(f)
}

// StreamLen returns the file length.
func (f *BufferedFile) StreamLen() (int64, error) {
	return StreamLen(f)
}

// StreamPosition returns the current position.
func (f *BufferedFile) StreamPosition() (int64, error) {
	return StreamPosition(f)
}

// Flush writes pending data and syncs the stream.
func (f *BufferedFile) Flush() error {
	if f.stream == nil {
		return ErrorNotReady
	}
	if err := f.flushWrites(); err != nil {
		return err
	}
	return f.stream.Sync()
}

// Close flushes and closes the stream. Later calls return ErrorNotReady.
func (f *BufferedFile) Close() error {
	if f.stream == nil {
		return ErrorNotReady
	}
	err := f.Flush()
	if closeErr := f.stream.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		glog.Warningf("close file: %v", err)
	}
	f.stream = nil
	return err
}

func (f *BufferedFile) flushWrites() error {
	if f.pending == 0 {
		return nil
	}
	err := WriteAll(f.stream, f.buf[:f.pending])
	f.pending = 0
	return err
}

// dropReadAhead moves the stream back to the logical position.
func (f *BufferedFile) dropReadAhead() error {
	if f.r == f.w {
		return nil
	}
	_, err := f.stream.Seek(int64(f.r-f.w), io.SeekCurrent)
	f.r, f.w = 0, 0
	return err
}

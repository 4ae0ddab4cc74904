package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, fsys FileSystem, path string) string {
	f, err := NewOpenOptions().Read(true).OpenExisting(true).Open(fsys, path)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestOpenOptions(t *testing.T) {
	o := NewOpenOptions().Read(true).Write(true).OpenAlways(true).CreateNew(true)
	require.Equal(t, AccessRead|AccessWrite, o.AccessMode())
	require.Equal(t, OpenAlways|CreateNew, o.OpenMode())

	o = o.Write(false).CreateNew(false)
	require.Equal(t, AccessRead, o.AccessMode())
	require.Equal(t, OpenAlways, o.OpenMode())
	require.Equal(t, "access=r mode=0x2", o.String())
}

func TestOpenModes(t *testing.T) {
	fsys := NewDirFS(t.TempDir())
	write := NewOpenOptions().Write(true)

	_, err := NewOpenOptions().Read(true).OpenExisting(true).Open(fsys, "a.txt")
	require.Equal(t, ErrorNotExists, err)

	f, err := write.CreateNew(true).Open(fsys, "a.txt")
	require.NoError(t, err)
	require.NoError(t, WriteAll(f, []byte("hello")))
	require.NoError(t, f.Close())
	require.Equal(t, "hello", readAll(t, fsys, "a.txt"))

	_, err = write.CreateNew(true).Open(fsys, "a.txt")
	require.Equal(t, ErrorExists, err)

	f, err = write.OpenAppend(true).Open(fsys, "a.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte(" world"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "hello world", readAll(t, fsys, "a.txt"))

	f, err = write.OpenAlways(true).Open(fsys, "a.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("J"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "Jello world", readAll(t, fsys, "a.txt"))

	f, err = write.CreateAlways(true).Open(fsys, "a.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "", readAll(t, fsys, "a.txt"))

	f, err = write.OpenAlways(true).Open(fsys, "b.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "", readAll(t, fsys, "b.txt"))
}

func TestOpenInvalid(t *testing.T) {
	fsys := NewDirFS(t.TempDir())
	testCases := []struct {
		name string
		opts OpenOptions
		path string
		err  error
	}{
		{"no access", NewOpenOptions().OpenAlways(true), "x", ErrorInvalidParameter},
		{"no mode", NewOpenOptions().Read(true), "x", ErrorInvalidParameter},
		{"truncate read-only", NewOpenOptions().Read(true).CreateAlways(true), "x", ErrorInvalidParameter},
		{"escape", NewOpenOptions().Read(true).OpenAlways(true), "../x", ErrorInvalidName},
		{"empty", NewOpenOptions().Read(true).OpenAlways(true), "", ErrorInvalidName},
		{"root", NewOpenOptions().Read(true).OpenAlways(true), "/", ErrorInvalidName},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.opts.Open(fsys, tc.path)
			require.Equal(t, tc.err, err)
		})
	}
}

func TestAbsolutePathIsRooted(t *testing.T) {
	root := t.TempDir()
	fsys := NewDirFS(root)
	f, err := NewOpenOptions().Write(true).CreateNew(true).Open(fsys, "/ext/data.bin")
	require.Equal(t, ErrorNotExists, err)
	require.Nil(t, f)

	require.NoError(t, os.Mkdir(filepath.Join(root, "ext"), 0755))
	f, err = NewOpenOptions().Write(true).CreateNew(true).Open(fsys, "/ext/data.bin")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = os.Stat(filepath.Join(root, "ext", "data.bin"))
	require.NoError(t, err)

	require.NoError(t, fsys.Remove("/ext/data.bin"))
	require.Equal(t, ErrorNotExists, fsys.Remove("/ext/data.bin"))
}

func TestBufferedFileSeek(t *testing.T) {
	fsys := NewDirFS(t.TempDir())
	f, err := NewOpenOptions().Read(true).Write(true).CreateNew(true).Open(fsys, "s")
	require.NoError(t, err)
	defer f.Close()

	data := strings.Repeat("0123456789", 100)
	require.NoError(t, WriteAll(f, []byte(data)))

	size, err := f.StreamLen()
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), size)
	pos, err := f.StreamPosition()
	require.NoError(t, err)
	require.Equal(t, size, pos)

	require.NoError(t, f.Rewind())
	p := make([]byte, 4)
	_, err = io.ReadFull(f, p)
	require.NoError(t, err)
	require.Equal(t, "0123", string(p))
	pos, err = f.StreamPosition()
	require.NoError(t, err)
	require.Equal(t, int64(4), pos)

	size, err = f.StreamLen()
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), size)
	pos, err = f.StreamPosition()
	require.NoError(t, err)
	require.Equal(t, int64(4), pos)

	// overwrite after a buffered read lands at the logical position
	_, err = f.Write([]byte("ab"))
	require.NoError(t, err)
	_, err = io.ReadFull(f, p)
	require.NoError(t, err)
	require.Equal(t, "6789", string(p))

	pos, err = f.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)-3), pos)
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "789", string(rest))

	require.NoError(t, f.Rewind())
	_, err = io.ReadFull(f, p)
	require.NoError(t, err)
	require.Equal(t, "0123", string(p))
	_, err = io.ReadFull(f, p)
	require.NoError(t, err)
	require.Equal(t, "ab67", string(p))
}

func TestBufferedFileClosed(t *testing.T) {
	fsys := NewDirFS(t.TempDir())
	f, err := NewOpenOptions().Write(true).CreateNew(true).Open(fsys, "c")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, ErrorNotReady, f.Close())
	_, err = f.Write([]byte("x"))
	require.Equal(t, ErrorNotReady, err)
	_, err = f.Read(make([]byte, 1))
	require.Equal(t, ErrorNotReady, err)
	_, err = f.Seek(0, io.SeekStart)
	require.Equal(t, ErrorNotReady, err)
}

type failingFS struct {
	stream *memStream
}

func (fs *failingFS) OpenStream(string, AccessMode, OpenMode) (Stream, error) {
	return fs.stream, ErrorDenied
}

type memStream struct {
	bytes.Reader
	closed int
}

func (s *memStream) Write([]byte) (int, error) { return 0, nil }
func (s *memStream) Sync() error               { return nil }
func (s *memStream) Close() error              { s.closed++; return nil }

func TestFailedOpenClosesStream(t *testing.T) {
	fsys := &failingFS{stream: &memStream{}}
	f, err := NewOpenOptions().Read(true).OpenExisting(true).Open(fsys, "x")
	require.Nil(t, f)
	require.Equal(t, ErrorDenied, err)
	require.Equal(t, 1, fsys.stream.closed)
}

func TestStreamLenKeepsPosition(t *testing.T) {
	r := bytes.NewReader([]byte("abcdef"))
	_, err := r.Seek(2, io.SeekStart)
	require.NoError(t, err)
	size, err := StreamLen(r)
	require.NoError(t, err)
	require.Equal(t, int64(6), size)
	pos, err := StreamPosition(r)
	require.NoError(t, err)
	require.Equal(t, int64(2), pos)

	require.NoError(t, Rewind(r))
	pos, err = StreamPosition(r)
	require.NoError(t, err)
	require.Zero(t, pos)
}

type chunkWriter struct {
	max  int
	data []byte
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		p = p[:w.max]
	}
	w.data = append(w.data, p...)
	return len(p), nil
}

func TestWriteAll(t *testing.T) {
	w := &chunkWriter{max: 3}
	require.NoError(t, WriteAll(w, []byte("hello world")))
	require.Equal(t, "hello world", string(w.data))

	require.Equal(t, io.ErrShortWrite, WriteAll(&memStream{}, []byte("x")))
	require.NoError(t, WriteAll(&memStream{}, nil))
}

func TestFromOSError(t *testing.T) {
	testCases := []struct {
		in  error
		out error
	}{
		{nil, nil},
		{io.EOF, io.EOF},
		{os.ErrExist, ErrorExists},
		{os.ErrNotExist, ErrorNotExists},
		{os.ErrPermission, ErrorDenied},
		{os.ErrClosed, ErrorNotReady},
		{ErrorAlreadyOpen, ErrorAlreadyOpen},
		{errors.New("boom"), ErrorInternal},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.out, FromOSError(tc.in))
	}
	require.Equal(t, "file/dir not exist", ErrorNotExists.Error())
	require.Equal(t, "unknown error", Error(99).Error())
}

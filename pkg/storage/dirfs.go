package storage

import (
	"io"
	"os"
	"path/filepath"
)

// DirFS is a FileSystem rooted at a host directory.
type DirFS struct {
	Root string
}

var _ FileSystem = (*DirFS)(nil)

// NewDirFS creates a DirFS at root.
func NewDirFS(root string) *DirFS {
	return &DirFS{Root: root}
}

// OpenStream implements FileSystem.
func (d *DirFS) OpenStream(path string, access AccessMode, mode OpenMode) (Stream, error) {
	name, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	flags, err := osFlags(access, mode)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(name, flags, 0644)
	if err != nil {
		return nil, FromOSError(err)
	}
	s := &dirStream{f: f}
	if mode&OpenAppend != 0 {
		if _, err := s.Seek(0, io.SeekEnd); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Remove deletes path.
func (d *DirFS) Remove(path string) error {
	name, err := d.resolve(path)
	if err != nil {
		return err
	}
	return FromOSError(os.Remove(name))
}

func (d *DirFS) resolve(path string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(rel) {
		rel = rel[len(filepath.VolumeName(rel))+1:]
	}
	if rel == "" || rel == "." || !filepath.IsLocal(rel) {
		return "", ErrorInvalidName
	}
	return filepath.Join(d.Root, rel), nil
}

// osFlags translates modes to os.OpenFile flags, the first open mode bit
// set in order CreateAlways, CreateNew, OpenAppend, OpenAlways, OpenExisting
// wins.
func osFlags(access AccessMode, mode OpenMode) (int, error) {
	var flags int
	switch access & (AccessRead | AccessWrite) {
	case AccessRead:
		flags = os.O_RDONLY
	case AccessWrite:
		flags = os.O_WRONLY
	case AccessRead | AccessWrite:
		flags = os.O_RDWR
	default:
		return 0, ErrorInvalidParameter
	}
	switch {
	case mode&CreateAlways != 0:
		flags |= os.O_CREATE | os.O_TRUNC
	case mode&CreateNew != 0:
		flags |= os.O_CREATE | os.O_EXCL
	case mode&(OpenAppend|OpenAlways) != 0:
		flags |= os.O_CREATE
	case mode&OpenExisting != 0:
	default:
		return 0, ErrorInvalidParameter
	}
	if flags&os.O_TRUNC != 0 && access&AccessWrite == 0 {
		return 0, ErrorInvalidParameter
	}
	return flags, nil
}

// dirStream maps os errors to Error.
type dirStream struct {
	f *os.File
}

func (s *dirStream) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	return n, FromOSError(err)
}

func (s *dirStream) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	return n, FromOSError(err)
}

func (s *dirStream) Seek(offset int64, whence int) (int64, error) {
	pos, err := s.f.Seek(offset, whence)
	return pos, FromOSError(err)
}

func (s *dirStream) Sync() error {
	return FromOSError(s.f.Sync())
}

func (s *dirStream) Close() error {
	return FromOSError(s.f.Close())
}

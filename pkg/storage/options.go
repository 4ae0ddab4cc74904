package storage

import (
	"fmt"

	"github.com/golang/glog"
)

// AccessMode is the bit set of requested access.
type AccessMode uint8

// Access modes.
const (
	AccessRead AccessMode = 1 << iota
	AccessWrite
)

// OpenMode is the bit set of open behaviors.
type OpenMode uint8

// Open modes.
const (
	// OpenExisting fails if the file doesn't exist.
	OpenExisting OpenMode = 1 << iota
	// OpenAlways creates the file if it doesn't exist.
	OpenAlways
	// OpenAppend is OpenAlways with the position set to the end of file.
	OpenAppend
	// CreateNew creates the file and fails if it exists.
	CreateNew
	// CreateAlways creates the file, truncating an existing one.
	CreateAlways
)

func (m AccessMode) String() string {
	var s string
	if m&AccessRead != 0 {
		s += "r"
	}
	if m&AccessWrite != 0 {
		s += "w"
	}
	if s == "" {
		return "-"
	}
	return s
}

// OpenOptions configures how a BufferedFile is opened.
// The zero value requests nothing, set at least one access and one open
// mode.
type OpenOptions struct {
	access AccessMode
	mode   OpenMode
}

// NewOpenOptions returns empty OpenOptions.
func NewOpenOptions() OpenOptions {
	return OpenOptions{}
}

func (o OpenOptions) withAccess(bit AccessMode, set bool) OpenOptions {
	if set {
		o.access |= bit
	} else {
		o.access &^= bit
	}
	return o
}

func (o OpenOptions) withMode(bit OpenMode, set bool) OpenOptions {
	if set {
		o.mode |= bit
	} else {
		o.mode &^= bit
	}
	return o
}

// Read sets read access.
func (o OpenOptions) Read(set bool) OpenOptions { return o.withAccess(AccessRead, set) }

// Write sets write access.
func (o OpenOptions) Write(set bool) OpenOptions { return o.withAccess(AccessWrite, set) }

// OpenExisting opens the file, failing if it doesn't exist.
func (o OpenOptions) OpenExisting(set bool) OpenOptions { return o.withMode(OpenExisting, set) }

// OpenAlways opens the file, creating it if needed.
func (o OpenOptions) OpenAlways(set bool) OpenOptions { return o.withMode(OpenAlways, set) }

// OpenAppend opens or creates the file and positions at its end.
func (o OpenOptions) OpenAppend(set bool) OpenOptions { return o.withMode(OpenAppend, set) }

// CreateNew creates the file, failing if it exists.
func (o OpenOptions) CreateNew(set bool) OpenOptions { return o.withMode(CreateNew, set) }

// CreateAlways creates the file, truncating it if it exists.
func (o OpenOptions) CreateAlways(set bool) OpenOptions { return o.withMode(CreateAlways, set) }

// AccessMode returns the access bits.
func (o OpenOptions) AccessMode() AccessMode { return o.access }

// OpenMode returns the open mode bits.
func (o OpenOptions) OpenMode() OpenMode { return o.mode }

// String implements fmt.Stringer.
func (o OpenOptions) String() string {
	return fmt.Sprintf("access=%s mode=%#x", o.access, uint8(o.mode))
}

// Open opens path on fsys as a BufferedFile. The stream is closed when
// opening fails.
func (o OpenOptions) Open(fsys FileSystem, path string) (*BufferedFile, error) {
	stream, err := fsys.OpenStream(path, o.access, o.mode)
	if err != nil {
		if stream != nil {
			stream.Close()
		}
		glog.V(4).Infof("open %q %s: %v", path, o, err)
		return nil, err
	}
	glog.V(4).Infof("open %q %s", path, o)
	return NewBufferedFile(stream), nil
}

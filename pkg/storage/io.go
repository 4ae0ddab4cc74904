package storage

import "io"

// StreamPosition returns the current position of s.
func StreamPosition(s io.Seeker) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

// Rewind moves s to the start.
func Rewind(s io.Seeker) error {
	_, err := s.Seek(0, io.SeekStart)
	return err
}

// StreamLen returns the length of s, leaving its position unchanged.
func StreamLen(s io.Seeker) (int64, error) {
	pos, err := StreamPosition(s)
	if err != nil {
		return 0, err
	}
	size, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if pos != size {
		if _, err = s.Seek(pos, io.SeekStart); err != nil {
			return 0, err
		}
	}
	return size, nil
}

// WriteAll writes the whole of p, retrying short writes.
// A write accepting nothing without an error fails with io.ErrShortWrite.
func WriteAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

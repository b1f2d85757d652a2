package objcodec

import "io"

// BytesReader is an io.Reader over an in-memory binary payload.
type BytesReader struct {
	B []byte // source slice
	N int    // current read position
}

// NewBytesReader creates a new BytesReader.
func NewBytesReader(b []byte) *BytesReader {
	return &BytesReader{B: b}
}

// Read implements the [io.Reader] interface.
func (r *BytesReader) Read(p []byte) (int, error) {
	if r.N >= len(r.B) {
		return 0, io.EOF
	}
	n := copy(p, r.B[r.N:])
	r.N += n
	return n, nil
}

// ReadByte implements the [io.ByteReader] interface.
func (r *BytesReader) ReadByte() (byte, error) {
	if r.N >= len(r.B) {
		return 0, io.EOF
	}
	b := r.B[r.N]
	r.N++
	return b, nil
}

// Next returns a view of the next n bytes and advances past them.
// The view aliases B; callers copy it if they keep it.
func (r *BytesReader) Next(n int) ([]byte, error) {
	if n > r.Available() {
		if r.Available() == 0 {
			return nil, io.EOF
		}
		r.N = len(r.B)
		return nil, io.ErrUnexpectedEOF
	}
	b := r.B[r.N : r.N+n]
	r.N += n
	return b, nil
}

// Rest returns the unread bytes without consuming them.
func (r *BytesReader) Rest() []byte {
	if r.N >= len(r.B) {
		return nil
	}
	return r.B[r.N:]
}

// Reset allows the underlying byte slice to be reused.
func (r *BytesReader) Reset() {
	r.N = 0
}

// Len returns the number of bytes read.
func (r *BytesReader) Len() int {
	return r.N
}

// Size returns the size of the underlying byte slice.
func (r *BytesReader) Size() int {
	return len(r.B)
}

// Available returns the number of bytes available for reading.
func (r *BytesReader) Available() int {
	length := len(r.B) - r.N
	if length <= 0 {
		return 0
	}
	return length
}

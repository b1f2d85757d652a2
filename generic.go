package objcodec

import (
	"io"
)

// Decode unmarshals data into a new T. Empty input yields the zero T.
// Callers must be prepared for nil members: unconstructible subtrees decode to nil.
func Decode[T any](c Codec, data []byte) (T, error) {
	var out T
	if len(data) == 0 {
		return out, nil
	}
	if err := c.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// ReadFrom reads r to the end and unmarshals it into v.
// WARNING: This is NOT a streaming implementation. Both wire formats need the
// whole payload: JSON for the type table search, binary for the trailing check.
func ReadFrom(c Codec, r io.Reader, v any) (int64, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	n, err := buf.ReadFrom(r)
	if err != nil {
		return n, err
	}
	return n, c.Unmarshal(buf.Bytes(), v)
}

// WriteTo marshals v and writes the payload to w.
func WriteTo(c Codec, w io.Writer, v any) (int64, error) {
	if bc, ok := c.(*BinaryCodec); ok {
		return bc.EncodeTo(w, v)
	}
	buf, err := c.Marshal(v)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	if err != nil {
		return int64(n), err
	}
	if n < len(buf) {
		return int64(n), io.ErrShortWrite
	}
	return int64(n), nil
}

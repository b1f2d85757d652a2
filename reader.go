package objcodec

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// Reader is the binary wire reader over an in-memory payload.
// It tracks the first error; subsequent reads become no-ops and leave
// their destinations unchanged.
type Reader struct {
	r     *BytesReader
	err   error // first error encountered.
	order binary.ByteOrder
}

// NewReader creates a Reader over data.
func NewReader(data []byte) (*Reader, error) {
	if data == nil {
		return nil, ErrNilIO
	}
	return &Reader{r: NewBytesReader(data), order: Order}, nil
}

// WithByteOrder sets a custom byte order and returns the reader for chaining.
func (r *Reader) WithByteOrder(order binary.ByteOrder) *Reader {
	r.order = order
	return r
}

func (r *Reader) Count() int64   { return int64(r.r.Len()) }
func (r *Reader) Available() int { return r.r.Available() }
func (r *Reader) Err() error     { return r.err }

// Rest returns the unread bytes.
func (r *Reader) Rest() []byte { return r.r.Rest() }

// setError records the first non-nil error.
func (r *Reader) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// Fail latches err unless an earlier error is already recorded.
func (r *Reader) Fail(err error) { r.setError(err) }

// next returns a view of the next n bytes.
func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	buf, err := r.r.Next(n)
	if err != nil {
		if err == io.EOF && n > 0 {
			// a partial read is different from a clean end-of-stream.
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return nil
	}
	return buf
}

// --- Primitive Read Operations ---

func (r *Reader) ReadBool(dest *bool) {
	var b uint8
	r.ReadUint8(&b)
	if r.err == nil {
		*dest = b != 0
	}
}

func (r *Reader) ReadUint8(dest *uint8) {
	if r.err != nil {
		return
	}
	b, err := r.r.ReadByte()
	if err == nil {
		*dest = b
	} else {
		r.err = io.ErrUnexpectedEOF
	}
}

func (r *Reader) ReadInt8(dest *int8) {
	var b uint8
	r.ReadUint8(&b)
	if r.err == nil {
		*dest = int8(b)
	}
}

func (r *Reader) ReadUint16(dest *uint16) {
	buf := r.next(2)
	if r.err == nil {
		*dest = r.order.Uint16(buf)
	}
}

func (r *Reader) ReadUint32(dest *uint32) {
	buf := r.next(4)
	if r.err == nil {
		*dest = r.order.Uint32(buf)
	}
}

func (r *Reader) ReadUint64(dest *uint64) {
	buf := r.next(8)
	if r.err == nil {
		*dest = r.order.Uint64(buf)
	}
}

func (r *Reader) ReadInt16(dest *int16) {
	buf := r.next(2)
	if r.err == nil {
		*dest = int16(r.order.Uint16(buf))
	}
}

func (r *Reader) ReadInt32(dest *int32) {
	buf := r.next(4)
	if r.err == nil {
		*dest = int32(r.order.Uint32(buf))
	}
}

func (r *Reader) ReadInt64(dest *int64) {
	buf := r.next(8)
	if r.err == nil {
		*dest = int64(r.order.Uint64(buf))
	}
}

func (r *Reader) ReadFloat32(dest *float32) {
	buf := r.next(4)
	if r.err == nil {
		*dest = math.Float32frombits(r.order.Uint32(buf))
	}
}

func (r *Reader) ReadFloat64(dest *float64) {
	buf := r.next(8)
	if r.err == nil {
		*dest = math.Float64frombits(r.order.Uint64(buf))
	}
}

func (r *Reader) ReadUvarint(dest *uint64) {
	if r.err != nil {
		return
	}
	v, err := binary.ReadUvarint(r.r)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return
	}
	*dest = v
}

// ReadString reads a uvarint length followed by that many bytes.
func (r *Reader) ReadString(dest *string) {
	var n uint64
	r.ReadUvarint(&n)
	if r.err != nil {
		return
	}
	if !fits(r, n, 1) {
		return
	}
	buf := r.next(int(n))
	if r.err == nil {
		*dest = string(buf)
	}
}

// ReadCount reads an int32 element count and checks that at least minSize
// bytes per element remain, so a corrupt count cannot force a huge allocation.
func (r *Reader) ReadCount(dest *int, minSize int) {
	var n int32
	r.ReadInt32(&n)
	if r.err != nil {
		return
	}
	if n < 0 {
		r.err = errors.Newf("objcodec: negative count %d", n)
		return
	}
	if fits(r, n, minSize) {
		*dest = int(n)
	}
}

// fits latches ErrTruncatedData when n items of size each cannot be present.
func fits[N constraints.Integer](r *Reader, n N, size int) bool {
	if uint64(n) > uint64(r.r.Available())/uint64(max(size, 1)) {
		r.err = errors.Wrapf(ErrTruncatedData, "declared %d items, %d bytes left", n, r.r.Available())
		return false
	}
	return true
}

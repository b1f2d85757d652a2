package objcodec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// --- Mocks and Helpers ---

// limitedWriter accepts at most max bytes and then fails with io.ErrShortWrite.
type limitedWriter struct {
	buf bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	room := w.max - w.buf.Len()
	if room <= 0 {
		return 0, io.ErrShortWrite
	}
	if len(p) > room {
		w.buf.Write(p[:room])
		return room, io.ErrShortWrite
	}
	return w.buf.Write(p)
}

// --- Writer Test Suite ---

type WriterTestSuite struct {
	suite.Suite
	buf    *bytes.Buffer
	writer *Writer
}

// SetupTest runs before each test in the suite, ensuring a clean state.
func (s *WriterTestSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	s.writer, _ = NewWriter(s.buf)
}

func (s *WriterTestSuite) TestConstructors() {
	s.T().Run("ErrorOnNilWriter", func(t *testing.T) {
		_, err := NewWriter(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})
}

func (s *WriterTestSuite) TestBasicWrites() {
	s.writer.WriteUint8(0xAA)
	s.writer.WriteUint16(0xBBCC)
	s.writer.WriteUint32(0xDDEEFF00)
	s.writer.WriteUint64(0x0102030405060708)
	s.writer.WriteBool(true)
	s.writer.WriteString("hi")

	n, err := s.writer.Result()
	s.Require().NoError(err)
	s.Assert().EqualValues(1+2+4+8+1+3, n)
	s.Assert().EqualValues(s.buf.Len(), s.writer.Count())

	expected := []byte{
		0xAA,       // WriteUint8
		0xCC, 0xBB, // WriteUint16 (Little Endian)
		0x00, 0xFF, 0xEE, 0xDD, // WriteUint32 (Little Endian)
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // WriteUint64 (Little Endian)
		0x01,          // WriteBool
		0x02, 'h', 'i', // WriteString
	}
	s.Assert().Equal(expected, s.buf.Bytes())
}

func (s *WriterTestSuite) TestByteOrder() {
	s.writer.WithByteOrder(binary.BigEndian).WriteUint32(0x11223344)
	s.Require().NoError(s.writer.Flush())
	s.Assert().Equal([]byte{0x11, 0x22, 0x33, 0x44}, s.buf.Bytes())
}

func (s *WriterTestSuite) TestFloats() {
	s.writer.WriteFloat64(math.Copysign(0, -1))
	s.writer.WriteFloat32(float32(math.Inf(1)))
	_, err := s.writer.Result()
	s.Require().NoError(err)

	r, _ := NewReader(s.buf.Bytes())
	var f64 float64
	var f32 float32
	r.ReadFloat64(&f64)
	r.ReadFloat32(&f32)
	s.Require().NoError(r.Err())
	s.Assert().True(math.Signbit(f64))
	s.Assert().True(math.IsInf(float64(f32), 1))
}

func (s *WriterTestSuite) TestErrorHandling() {
	s.T().Run("ShortWriteError", func(t *testing.T) {
		lw := &limitedWriter{max: 5}
		writer, _ := NewWriter(lw)

		writer.WriteUint32(0x11223344) // buffered, OK.
		writer.WriteUint32(0xAABBCCDD) // buffered, OK.

		// Result() flushes the buffer, triggering the underlying write and the error.
		_, err := writer.Result()
		require.Error(t, err, "Error should be present after flush")
		assert.ErrorIs(t, err, io.ErrShortWrite)
	})

	s.T().Run("WriteAfterErrorIsNoOp", func(t *testing.T) {
		lw := &limitedWriter{max: 5}
		writer, _ := NewWriter(lw)

		writer.WriteUint32(0x11223344)
		writer.WriteUint32(0xAABBCCDD)
		writer.Flush()

		firstErr := writer.Err()
		require.ErrorIs(t, firstErr, io.ErrShortWrite)

		writer.WriteUint8(0xFF)
		writer.Flush()
		assert.Equal(t, firstErr, writer.Err(), "The latched error should not change")
		assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11, 0xDD}, lw.buf.Bytes())
	})
}

func (s *WriterTestSuite) TestFlush() {
	var out bytes.Buffer
	bw := bufio.NewWriterSize(&out, 128)
	writer, _ := NewWriter(bw)
	writer.WriteUint8(0xAA)

	// Before flush, data sits in the bufio layer.
	s.Assert().Equal(1, bw.Buffered())
	s.Assert().Zero(out.Len())

	s.Require().NoError(writer.Flush())
	s.Assert().Zero(bw.Buffered())
	s.Assert().Equal([]byte{0xAA}, out.Bytes())
}

// TestWriter runs the WriterTestSuite.
func TestWriter(t *testing.T) {
	suite.Run(t, new(WriterTestSuite))
}

// --- Reader Test Suite ---

type ReaderTestSuite struct {
	suite.Suite
}

func (s *ReaderTestSuite) TestConstructors() {
	s.T().Run("ErrorOnNilData", func(t *testing.T) {
		_, err := NewReader(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})
}

func (s *ReaderTestSuite) TestSuccessfulReads() {
	data := []byte{
		0xAA,       // uint8
		0xCC, 0xBB, // uint16
		0x00, 0xFF, 0xEE, 0xDD, // uint32
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // uint64
		0x02, 'h', 'i', // string
	}
	r, _ := NewReader(data)

	var v8 uint8
	var v16 uint16
	var v32 uint32
	var v64 uint64
	var str string
	r.ReadUint8(&v8)
	r.ReadUint16(&v16)
	r.ReadUint32(&v32)
	r.ReadUint64(&v64)
	r.ReadString(&str)

	s.Require().NoError(r.Err())
	s.Assert().Equal(uint8(0xAA), v8)
	s.Assert().Equal(uint16(0xBBCC), v16)
	s.Assert().Equal(uint32(0xDDEEFF00), v32)
	s.Assert().Equal(uint64(0x0102030405060708), v64)
	s.Assert().Equal("hi", str)
	s.Assert().EqualValues(len(data), r.Count())
	s.Assert().Zero(r.Available())
	s.Assert().Empty(r.Rest())
}

func (s *ReaderTestSuite) TestErrorHandling() {
	s.T().Run("ReadPastEnd", func(t *testing.T) {
		r, _ := NewReader([]byte{0x01, 0x02, 0x03})
		var v32 uint32
		r.ReadUint32(&v32) // Attempt to read 4 bytes from a 3-byte source.

		require.Error(t, r.Err())
		assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
	})

	s.T().Run("ReadAfterErrorIsNoOp", func(t *testing.T) {
		r, _ := NewReader([]byte{0x01, 0x02, 0x03})
		var v32 uint32
		var v8 uint8

		r.ReadUint32(&v32)
		firstErr := r.Err()
		require.Error(t, firstErr)

		r.ReadUint8(&v8)
		assert.Equal(t, firstErr, r.Err(), "The latched error should not change")
		assert.Equal(t, uint8(0), v8, "Destination variable should be unchanged after an error")
	})

	s.T().Run("StringLongerThanPayload", func(t *testing.T) {
		r, _ := NewReader([]byte{0x7F, 'a'})
		var str string
		r.ReadString(&str)
		assert.ErrorIs(t, r.Err(), ErrTruncatedData)
		assert.Empty(t, str)
	})

	s.T().Run("CountLargerThanPayload", func(t *testing.T) {
		r, _ := NewReader([]byte{0xFF, 0xFF, 0x00, 0x00, 0x01})
		count := -1
		r.ReadCount(&count, 1)
		assert.ErrorIs(t, r.Err(), ErrTruncatedData)
		assert.Equal(t, -1, count)
	})

	s.T().Run("NegativeCount", func(t *testing.T) {
		r, _ := NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF})
		var count int
		r.ReadCount(&count, 1)
		assert.Error(t, r.Err())
	})

	s.T().Run("FailLatchesFirstError", func(t *testing.T) {
		r, _ := NewReader([]byte{0x01})
		first := errors.New("first")
		r.Fail(first)
		r.Fail(errors.New("second"))
		assert.Equal(t, first, r.Err())
	})
}

func (s *ReaderTestSuite) TestTrailingBytes() {
	s.Assert().NoError(CheckTrailingNotZeros(nil))
	s.Assert().NoError(CheckTrailingNotZeros(make([]byte, 16)))

	err := CheckTrailingNotZeros([]byte{0, 0, 7})
	s.Require().Error(err)
	s.Assert().ErrorIs(err, ErrTrailingData)
	s.Assert().Contains(err.Error(), "non-zero byte")

	s.Assert().ErrorIs(CheckTrailingNotZeros(make([]byte, MAX_PADDING+1)), ErrTrailingData)
}

// TestReader runs the ReaderTestSuite.
func TestReader(t *testing.T) {
	suite.Run(t, new(ReaderTestSuite))
}

func TestBytesReader(t *testing.T) {
	r := NewBytesReader([]byte{1, 2, 3})
	b, err := r.Next(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, r.Size())

	_, err = r.Next(2)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	_, err = r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)

	r.Reset()
	p := make([]byte, 4)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, p[:n])
}

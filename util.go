package objcodec

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Order is the byte order of the binary wire format.
var Order binary.ByteOrder = binary.LittleEndian

// MAX_PADDING is the maximum number of trailing bytes tolerated after a binary payload.
// Anything larger is a framing error rather than padding.
const MAX_PADDING = 1024 // 1KB

// CheckTrailingNotZeros verifies that the bytes left after the root node are all zero.
// Editor preference blobs are sometimes padded; anything else means the
// payload was not fully consumed.
func CheckTrailingNotZeros(rest []byte) error {
	if len(rest) > MAX_PADDING {
		return errors.Wrapf(ErrTrailingData, "exceeds maximum expected size of %d bytes", MAX_PADDING)
	}
	for i, b := range rest {
		if b != 0 {
			return errors.Wrapf(ErrTrailingData, "found non-zero byte 0x%02x at offset %d", b, i)
		}
	}
	return nil
}

package objcodec

import "github.com/cockroachdb/errors"

var (
	// ErrNilIO indicates that NewReader/NewWriter was called with a nil buffer or writer.
	ErrNilIO = errors.New("objcodec: NewReader/NewWriter called with a nil source or sink")

	// ErrInvalidTarget is returned by Unmarshal when the destination is not a non-nil pointer.
	ErrInvalidTarget = errors.New("objcodec: Unmarshal target must be a non-nil pointer")

	// ErrMalformed is the single top-level error for wire input that cannot be parsed.
	// Partial results are never returned alongside it.
	ErrMalformed = errors.New("objcodec: malformed input")

	// ErrTrailingData indicates non-zero bytes after the root node of a binary payload.
	ErrTrailingData = errors.New("objcodec: non-zero trailing data found after decoding")

	// ErrTruncatedData indicates the payload ended before a declared length or count was satisfied.
	ErrTruncatedData = errors.New("objcodec: truncated data")

	// ErrUnknownPrimitive marks a scalar whose type has no wire encoding.
	ErrUnknownPrimitive = errors.New("objcodec: unknown primitive type")

	// ErrUnassignable marks a member whose wire node does not fit the destination type.
	ErrUnassignable = errors.New("objcodec: value not assignable")

	// ErrUnresolvedReference marks a reference node whose ID was never materialized.
	ErrUnresolvedReference = errors.New("objcodec: unresolved reference")

	// ErrDepthExceeded marks a value nested deeper than the configured MaxDepth.
	ErrDepthExceeded = errors.New("objcodec: maximum depth exceeded")

	// ErrUnknownFormat is returned by NewFromConfig for an unsupported wire format name.
	ErrUnknownFormat = errors.New("objcodec: unknown wire format")
)

// malformed marks err as ErrMalformed while keeping its own message and chain.
func malformed(err error) error {
	if err == nil || errors.Is(err, ErrMalformed) {
		return err
	}
	return errors.Mark(errors.Wrap(err, "objcodec: malformed input"), ErrMalformed)
}

package objcodec

import (
	"reflect"

	"go.uber.org/zap"
)

// Codec turns object graphs into a wire format and back.
type Codec interface {
	// Marshal encodes the graph rooted at v.
	Marshal(v any) ([]byte, error)
	// Unmarshal rebuilds a graph into the value v points to. Empty input
	// leaves v untouched. Only malformed input is reported as an error;
	// members that cannot be assigned are logged and skipped.
	Unmarshal(data []byte, v any) error
}

// StringCodec is a Codec whose payloads also travel as text, for sinks such
// as editor preference strings.
type StringCodec interface {
	Codec
	MarshalString(v any) (string, error)
	UnmarshalString(s string, v any) error
}

// DefaultMaxDepth bounds how deeply values may nest, counting every pointer,
// container and member on the way down. Deeper graphs fail with ErrDepthExceeded.
const DefaultMaxDepth = 10000

type options struct {
	registry *Registry
	logger   *zap.Logger
	maxDepth int
}

// Option configures a codec.
type Option func(*options)

// WithRegistry resolves types, factories and properties through r instead of the default registry.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLogger sends per-member diagnostics to logger instead of the global logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMaxDepth bounds value nesting. Marshal of a deeper graph fails with
// ErrDepthExceeded; deeper binary payloads are rejected as malformed.
func WithMaxDepth(n int) Option {
	return func(o *options) { o.maxDepth = n }
}

func newOptions(opts []Option) options {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = defaultRegistry
	}
	if o.maxDepth <= 0 {
		o.maxDepth = DefaultMaxDepth
	}
	return o
}

// pass is the state of one Marshal or Unmarshal call. It is never shared
// between calls.
type pass struct {
	reg      *Registry
	log      *zap.Logger
	maxDepth int
	depth    int
	err      error
	nextID   int32
	refs     *ReferenceTable
}

func (o options) newPass() *pass {
	log := o.logger
	if log == nil {
		log = L()
	}
	return &pass{
		reg:      o.registry,
		log:      log,
		maxDepth: o.maxDepth,
		refs:     newReferenceTable(),
	}
}

func (p *pass) newID() int32 {
	id := p.nextID
	p.nextID++
	return id
}

// unmarshalTarget validates the destination of Unmarshal.
func unmarshalTarget(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, ErrInvalidTarget
	}
	return rv.Elem(), nil
}

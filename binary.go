package objcodec

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// minNodeSize is the smallest encoded node: ID, IsNull, IsReference, Mode and
// an empty type name.
const minNodeSize = 4 + 1 + 1 + 4 + 1

// BinaryCodec is the self-describing little-endian wire format. Every node
// carries its header; payloads follow according to the mode.
type BinaryCodec struct {
	opts options
}

var _ StringCodec = (*BinaryCodec)(nil)

// NewBinary returns a binary codec.
func NewBinary(opts ...Option) *BinaryCodec {
	return &BinaryCodec{opts: newOptions(opts)}
}

// Marshal encodes the graph rooted at v.
func (c *BinaryCodec) Marshal(v any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if _, err := c.EncodeTo(buf, v); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// EncodeTo encodes the graph rooted at v into w and returns the number of bytes written.
func (c *BinaryCodec) EncodeTo(w io.Writer, v any) (int64, error) {
	p := c.opts.newPass()
	root := p.encodeRoot(v)
	if p.err != nil {
		return 0, p.err
	}

	bw, err := NewWriter(w)
	if err != nil {
		return 0, err
	}
	enc := binaryEncoder{w: bw, log: p.log}
	enc.node(root)
	return bw.Result()
}

// Unmarshal decodes data into the value v points to.
func (c *BinaryCodec) Unmarshal(data []byte, v any) error {
	dst, err := unmarshalTarget(v)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	p := c.opts.newPass()
	root, err := readBinary(data, p.log, p.maxDepth)
	if err != nil {
		return err
	}
	p.decodeRoot(root, dst)
	return nil
}

// MarshalBase64 encodes v and returns the payload in standard base64.
func (c *BinaryCodec) MarshalBase64(v any) (string, error) {
	data, err := c.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// UnmarshalBase64 decodes a payload produced by MarshalBase64.
func (c *BinaryCodec) UnmarshalBase64(s string, v any) error {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return malformed(err)
	}
	return c.Unmarshal(data, v)
}

func (c *BinaryCodec) MarshalString(v any) (string, error)   { return c.MarshalBase64(v) }
func (c *BinaryCodec) UnmarshalString(s string, v any) error { return c.UnmarshalBase64(s, v) }

type binaryEncoder struct {
	w   *Writer
	log *zap.Logger
}

func (e *binaryEncoder) header(n *Node) {
	e.w.WriteInt32(n.ID)
	e.w.WriteBool(n.IsNull)
	e.w.WriteBool(n.IsReference)
	e.w.WriteInt32(int32(n.Mode))
	e.w.WriteString(n.Type.String())
}

func (e *binaryEncoder) node(n *Node) {
	e.header(n)
	if n.IsNull || n.IsReference {
		return
	}
	switch n.Mode {
	case ModeClass:
		e.w.WriteInt32(int32(len(n.Members)))
		for _, m := range n.Members {
			e.w.WriteString(m.Name)
			e.w.WriteInt32(int32(m.Node.Mode))
			e.node(m.Node)
		}
	case ModeList:
		e.w.WriteInt32(int32(len(n.Items)))
		for _, item := range n.Items {
			e.node(item)
		}
	case ModeDictionary:
		e.w.WriteInt32(int32(len(n.Keys)))
		for i := range n.Keys {
			e.node(n.Keys[i])
			e.node(n.Values[i])
		}
	case ModeEnum:
		i, _ := n.Value.(int64)
		e.w.WriteInt64(i)
	case ModePrimitive:
		e.scalar(n)
	}
}

// scalar writes a primitive payload with the width its type name dictates.
func (e *binaryEncoder) scalar(n *Node) {
	switch v := n.Value.(type) {
	case bool:
		e.w.WriteBool(v)
		return
	case string:
		e.w.WriteString(v)
		return
	case float32:
		e.w.WriteFloat32(v)
		return
	case float64:
		e.w.WriteFloat64(v)
		return
	}

	var i int64
	switch v := n.Value.(type) {
	case int64:
		i = v
	case uint64:
		i = int64(v)
	}
	switch n.Type.Name {
	case "int8", "uint8":
		e.w.WriteUint8(uint8(i))
	case "int16", "uint16":
		e.w.WriteUint16(uint16(i))
	case "int32", "uint32":
		e.w.WriteUint32(uint32(i))
	case "int", "int64", "uint", "uint64":
		e.w.WriteUint64(uint64(i))
	default:
		e.log.Error("cannot write primitive", zap.Stringer(FieldNameType, n.Type), zap.Error(ErrUnknownPrimitive))
	}
}

// readBinary parses a whole payload. Any structural problem, including
// trailing garbage, is reported as ErrMalformed.
func readBinary(data []byte, log *zap.Logger, maxDepth int) (*Node, error) {
	r, err := NewReader(data)
	if err != nil {
		return nil, err
	}
	d := binaryDecoder{r: r, log: log, maxDepth: maxDepth}
	root := d.node()
	if err := r.Err(); err != nil {
		return nil, malformed(err)
	}
	if err := CheckTrailingNotZeros(r.Rest()); err != nil {
		return nil, malformed(err)
	}
	return root, nil
}

type binaryDecoder struct {
	r        *Reader
	log      *zap.Logger
	depth    int
	maxDepth int
}

func (d *binaryDecoder) node() *Node {
	if d.depth >= d.maxDepth {
		d.r.Fail(errors.Wrapf(ErrDepthExceeded, "limit %d", d.maxDepth))
		return nil
	}
	d.depth++
	defer func() { d.depth-- }()

	n := &Node{}
	var mode int32
	var name string
	d.r.ReadInt32(&n.ID)
	d.r.ReadBool(&n.IsNull)
	d.r.ReadBool(&n.IsReference)
	d.r.ReadInt32(&mode)
	d.r.ReadString(&name)
	if d.r.Err() != nil {
		return nil
	}
	n.Mode = Mode(mode)
	n.Type = ParseTypeName(name)
	if !n.Mode.Valid() {
		d.r.Fail(errors.Newf("objcodec: invalid mode %d", mode))
		return nil
	}
	if n.IsNull || n.IsReference {
		return n
	}

	var count int
	switch n.Mode {
	case ModeClass:
		// name (at least its length byte) and mode precede every child.
		d.r.ReadCount(&count, minNodeSize+1+4)
		n.Members = make([]Member, 0, count)
		for range count {
			var member string
			var childMode int32
			d.r.ReadString(&member)
			d.r.ReadInt32(&childMode)
			child := d.node()
			if d.r.Err() != nil {
				return nil
			}
			if child.Mode != Mode(childMode) {
				d.r.Fail(errors.Newf("objcodec: member %q declared as %s, encoded as %s", member, Mode(childMode), child.Mode))
				return nil
			}
			n.Members = append(n.Members, Member{Name: member, Node: child})
		}
	case ModeList:
		d.r.ReadCount(&count, minNodeSize)
		n.Items = make([]*Node, 0, count)
		for range count {
			item := d.node()
			if d.r.Err() != nil {
				return nil
			}
			n.Items = append(n.Items, item)
		}
	case ModeDictionary:
		d.r.ReadCount(&count, 2*minNodeSize)
		n.Keys = make([]*Node, 0, count)
		n.Values = make([]*Node, 0, count)
		for range count {
			k := d.node()
			v := d.node()
			if d.r.Err() != nil {
				return nil
			}
			n.Keys = append(n.Keys, k)
			n.Values = append(n.Values, v)
		}
	case ModeEnum:
		var i int64
		d.r.ReadInt64(&i)
		n.Value = i
	case ModePrimitive:
		n.Value = d.scalar(n.Type.Name)
	}
	if d.r.Err() != nil {
		return nil
	}
	return n
}

// scalar reads a primitive payload. Unknown names are logged and consume nothing.
func (d *binaryDecoder) scalar(name string) any {
	switch name {
	case "bool":
		var b bool
		d.r.ReadBool(&b)
		return b
	case "string":
		var s string
		d.r.ReadString(&s)
		return s
	case "float32":
		var f float32
		d.r.ReadFloat32(&f)
		return f
	case "float64":
		var f float64
		d.r.ReadFloat64(&f)
		return f
	case "int8":
		var i int8
		d.r.ReadInt8(&i)
		return int64(i)
	case "int16":
		var i int16
		d.r.ReadInt16(&i)
		return int64(i)
	case "int32":
		var i int32
		d.r.ReadInt32(&i)
		return int64(i)
	case "int", "int64":
		var i int64
		d.r.ReadInt64(&i)
		return i
	case "uint8":
		var u uint8
		d.r.ReadUint8(&u)
		return uint64(u)
	case "uint16":
		var u uint16
		d.r.ReadUint16(&u)
		return uint64(u)
	case "uint32":
		var u uint32
		d.r.ReadUint32(&u)
		return uint64(u)
	case "uint", "uint64":
		var u uint64
		d.r.ReadUint64(&u)
		return u
	}
	d.log.Error("cannot read primitive", zap.String(FieldNameType, name), zap.Error(ErrUnknownPrimitive))
	return nil
}

package objcodec

import (
	"bytes"
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Reserved keys of the JSON wire format. Member names never start with "$".
const (
	keyTypes   = "$types"
	keyTypeID  = "$typeid"
	keyID      = "$id"
	keyRef     = "$ref"
	keyValue   = "$value"
	keyValues  = "$values"
	keyKeys    = "keys"
	keyEntries = "values"

	keyAssembly = "assembly"
	keyTypeName = "type"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONCodec is the text wire format. Each document carries a "$types" table
// of the class types it mentions; class objects point into it by "$typeid".
type JSONCodec struct {
	opts options
}

var _ StringCodec = (*JSONCodec)(nil)

// NewJSON returns a JSON codec.
func NewJSON(opts ...Option) *JSONCodec {
	return &JSONCodec{opts: newOptions(opts)}
}

// Marshal encodes the graph rooted at v as one JSON object.
func (c *JSONCodec) Marshal(v any) ([]byte, error) {
	p := c.opts.newPass()
	root := p.encodeRoot(v)
	if p.err != nil {
		return nil, p.err
	}

	stream := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(stream)
	newJSONRenderer(stream, root, p.log).document(root)
	if stream.Error != nil {
		return nil, stream.Error
	}
	return bytes.Clone(stream.Buffer()), nil
}

// Unmarshal decodes a JSON document into the value v points to.
func (c *JSONCodec) Unmarshal(data []byte, v any) error {
	dst, err := unmarshalTarget(v)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	root, err := parseJSON(data)
	if err != nil {
		return err
	}
	p := c.opts.newPass()
	p.decodeRoot(root, dst)
	return nil
}

func (c *JSONCodec) MarshalString(v any) (string, error) {
	data, err := c.Marshal(v)
	return string(data), err
}

func (c *JSONCodec) UnmarshalString(s string, v any) error {
	return c.Unmarshal([]byte(s), v)
}

type jsonRenderer struct {
	s          *jsoniter.Stream
	log        *zap.Logger
	types      []TypeName
	typeIDs    map[TypeName]int
	referenced map[int32]bool
}

// newJSONRenderer collects the type table and the set of referenced IDs up front,
// so "$types" can lead the document and "$id" appears only where needed.
func newJSONRenderer(s *jsoniter.Stream, root *Node, log *zap.Logger) *jsonRenderer {
	r := &jsonRenderer{s: s, log: log, typeIDs: make(map[TypeName]int), referenced: make(map[int32]bool)}
	root.Walk(func(n *Node) {
		switch {
		case n.IsReference:
			r.referenced[n.ID] = true
		case n.IsNull:
		case n.Mode == ModeClass:
			if _, ok := r.typeIDs[n.Type]; !ok {
				r.typeIDs[n.Type] = len(r.types)
				r.types = append(r.types, n.Type)
			}
		}
	})
	return r
}

func (r *jsonRenderer) document(root *Node) {
	r.s.WriteObjectStart()
	r.s.WriteObjectField(keyTypes)
	r.s.WriteArrayStart()
	for i, t := range r.types {
		if i > 0 {
			r.s.WriteMore()
		}
		r.s.WriteObjectStart()
		r.s.WriteObjectField(keyAssembly)
		r.s.WriteString(t.Assembly)
		r.s.WriteMore()
		r.s.WriteObjectField(keyTypeName)
		r.s.WriteString(t.Name)
		r.s.WriteObjectEnd()
	}
	r.s.WriteArrayEnd()
	r.s.WriteMore()

	if root.Mode == ModeClass && !root.IsNull && !root.IsReference {
		r.classBody(root)
	} else {
		r.s.WriteObjectField(keyValue)
		r.node(root)
	}
	r.s.WriteObjectEnd()
}

func (r *jsonRenderer) node(n *Node) {
	if n.IsReference {
		r.s.WriteObjectStart()
		r.s.WriteObjectField(keyRef)
		r.s.WriteInt32(n.ID)
		r.s.WriteObjectEnd()
		return
	}
	if n.IsNull {
		r.s.WriteNil()
		return
	}

	switch n.Mode {
	case ModeClass:
		r.s.WriteObjectStart()
		r.classBody(n)
		r.s.WriteObjectEnd()

	case ModeList:
		if r.referenced[n.ID] {
			r.s.WriteObjectStart()
			r.id(n)
			r.s.WriteObjectField(keyValues)
			r.array(n.Items)
			r.s.WriteObjectEnd()
			return
		}
		r.array(n.Items)

	case ModeDictionary:
		r.s.WriteObjectStart()
		if r.referenced[n.ID] {
			r.id(n)
		}
		r.s.WriteObjectField(keyKeys)
		r.array(n.Keys)
		r.s.WriteMore()
		r.s.WriteObjectField(keyEntries)
		r.array(n.Values)
		r.s.WriteObjectEnd()

	default:
		if r.referenced[n.ID] {
			r.s.WriteObjectStart()
			r.id(n)
			r.s.WriteObjectField(keyValue)
			r.scalar(n)
			r.s.WriteObjectEnd()
			return
		}
		r.scalar(n)
	}
}

// classBody writes the fields of a class object without its braces.
func (r *jsonRenderer) classBody(n *Node) {
	r.s.WriteObjectField(keyTypeID)
	r.s.WriteInt(r.typeIDs[n.Type])
	if r.referenced[n.ID] {
		r.s.WriteMore()
		r.s.WriteObjectField(keyID)
		r.s.WriteInt32(n.ID)
	}
	for _, m := range n.Members {
		r.s.WriteMore()
		r.s.WriteObjectField(m.Name)
		r.node(m.Node)
	}
}

// id writes "$id" followed by a comma.
func (r *jsonRenderer) id(n *Node) {
	r.s.WriteObjectField(keyID)
	r.s.WriteInt32(n.ID)
	r.s.WriteMore()
}

func (r *jsonRenderer) array(items []*Node) {
	r.s.WriteArrayStart()
	for i, item := range items {
		if i > 0 {
			r.s.WriteMore()
		}
		r.node(item)
	}
	r.s.WriteArrayEnd()
}

func (r *jsonRenderer) scalar(n *Node) {
	switch v := n.Value.(type) {
	case bool:
		r.s.WriteBool(v)
	case int64:
		r.s.WriteInt64(v)
	case uint64:
		r.s.WriteUint64(v)
	case float32:
		if name, ok := nonFiniteName(float64(v)); ok {
			r.s.WriteString(name)
			return
		}
		r.s.WriteFloat32(v)
	case float64:
		if name, ok := nonFiniteName(v); ok {
			r.s.WriteString(name)
			return
		}
		r.s.WriteFloat64(v)
	case string:
		r.s.WriteString(v)
	case json.Number:
		r.s.WriteRaw(v.String())
	default:
		r.log.Error("cannot write primitive", zap.Stringer(FieldNameType, n.Type), zap.Error(ErrUnknownPrimitive))
		r.s.WriteNil()
	}
}

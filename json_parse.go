package objcodec

import (
	"bytes"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

var typesKey = []byte(`"` + keyTypes + `"`)

// extractTypeTable locates the first "$types" key by a plain text search and
// parses only the array that follows it. The search does not know about
// string literals or nesting, so an earlier "$types" anywhere in the text is
// taken for the table. A document without the key has an empty table.
func extractTypeTable(data []byte) ([]TypeName, error) {
	i := bytes.Index(data, typesKey)
	if i < 0 {
		return nil, nil
	}
	rest := bytes.TrimLeft(data[i+len(typesKey):], " \t\r\n")
	if len(rest) == 0 || rest[0] != ':' {
		return nil, malformed(errors.Newf("objcodec: %s at offset %d is not an object key", keyTypes, i))
	}

	iter := jsonAPI.BorrowIterator(rest[1:])
	defer jsonAPI.ReturnIterator(iter)

	var table []TypeName
	if iter.WhatIsNext() != jsoniter.ArrayValue {
		return nil, malformed(errors.Newf("objcodec: %s is not an array", keyTypes))
	}
	ok := iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
		var t TypeName
		ok := iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
			switch field {
			case keyAssembly:
				t.Assembly = iter.ReadString()
			case keyTypeName:
				t.Name = iter.ReadString()
			default:
				iter.Skip()
			}
			return true
		})
		table = append(table, t)
		return ok
	})
	if !ok {
		return nil, malformed(errors.Newf("objcodec: unterminated %s array", keyTypes))
	}
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, malformed(iter.Error)
	}
	return table, nil
}

// parseJSON turns a document into a node tree. The type table comes from
// extractTypeTable; the structural pass skips the "$types" key wherever it
// appears.
func parseJSON(data []byte) (*Node, error) {
	table, err := extractTypeTable(data)
	if err != nil {
		return nil, err
	}

	iter := jsonAPI.BorrowIterator(data)
	defer jsonAPI.ReturnIterator(iter)

	jp := jsonParser{types: table}
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, malformed(errors.New("objcodec: document is not a JSON object"))
	}
	root := jp.value(iter)
	if jp.err == nil && iter.Error != nil && iter.Error != io.EOF {
		jp.err = iter.Error
	}
	if jp.err == nil {
		// nothing but whitespace may follow the document.
		if iter.WhatIsNext() != jsoniter.InvalidValue || iter.Error != io.EOF {
			jp.err = errors.New("objcodec: unexpected content after document")
		}
	}
	if jp.err != nil {
		return nil, malformed(jp.err)
	}
	return root, nil
}

type jsonParser struct {
	types []TypeName
	err   error
}

func (jp *jsonParser) fail(err error) {
	if jp.err == nil {
		jp.err = err
	}
}

func (jp *jsonParser) value(iter *jsoniter.Iterator) *Node {
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		return nullNode(NoID, TypeName{})
	case jsoniter.StringValue:
		return &Node{ID: NoID, Type: TypeName{Name: "string"}, Mode: ModePrimitive, Value: iter.ReadString()}
	case jsoniter.NumberValue:
		return &Node{ID: NoID, Type: TypeName{Name: numberName}, Mode: ModePrimitive, Value: iter.ReadNumber()}
	case jsoniter.BoolValue:
		return &Node{ID: NoID, Type: TypeName{Name: "bool"}, Mode: ModePrimitive, Value: iter.ReadBool()}
	case jsoniter.ArrayValue:
		return &Node{ID: NoID, Mode: ModeList, Items: jp.array(iter)}
	case jsoniter.ObjectValue:
		return jp.object(iter)
	}
	jp.fail(errors.New("objcodec: unexpected token"))
	return nullNode(NoID, TypeName{})
}

func (jp *jsonParser) array(iter *jsoniter.Iterator) []*Node {
	items := []*Node{}
	ok := iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
		items = append(items, jp.value(iter))
		return jp.err == nil
	})
	if !ok {
		jp.fail(errors.New("objcodec: unterminated array"))
	}
	return items
}

// object classifies a JSON object by its reserved keys: "$ref" is a
// reference, "$values" a referenced list, "$value" a wrapped value,
// a lone keys/values pair a dictionary, anything else a class.
func (jp *jsonParser) object(iter *jsoniter.Iterator) *Node {
	var (
		id, ref          = NoID, NoID
		typeID           = -1
		hasRef           bool
		values, wrapped  *Node
		members          []Member
		hasValues        bool
		keys, dictValues *Node
	)
	ok := iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
		switch field {
		case keyTypes:
			iter.Skip()
		case keyTypeID:
			typeID = iter.ReadInt()
		case keyID:
			id = iter.ReadInt32()
		case keyRef:
			ref, hasRef = iter.ReadInt32(), true
		case keyValues:
			values, hasValues = jp.value(iter), true
		case keyValue:
			wrapped = jp.value(iter)
		default:
			if strings.HasPrefix(field, "$") {
				iter.Skip()
				break
			}
			child := jp.value(iter)
			switch field {
			case keyKeys:
				keys = child
			case keyEntries:
				dictValues = child
			}
			members = append(members, Member{Name: field, Node: child})
		}
		return jp.err == nil
	})
	if !ok {
		jp.fail(errors.New("objcodec: unterminated object"))
	}
	if jp.err != nil {
		return nil
	}

	switch {
	case hasRef:
		return refNode(ref, TypeName{})
	case hasValues:
		if values.Mode != ModeList || values.IsNull {
			jp.fail(errors.Newf("objcodec: %s is not an array", keyValues))
			return nil
		}
		values.ID = id
		return values
	case wrapped != nil:
		if id != NoID {
			wrapped.ID = id
		}
		return wrapped
	case typeID < 0 && len(members) == 2 && isList(keys) && isList(dictValues):
		if len(keys.Items) != len(dictValues.Items) {
			jp.fail(errors.Newf("objcodec: dictionary has %d keys and %d values", len(keys.Items), len(dictValues.Items)))
			return nil
		}
		return &Node{ID: id, Mode: ModeDictionary, Keys: keys.Items, Values: dictValues.Items}
	}

	n := &Node{ID: id, Mode: ModeClass, Members: members}
	if typeID >= 0 {
		if typeID >= len(jp.types) {
			jp.fail(errors.Newf("objcodec: %s %d outside a table of %d", keyTypeID, typeID, len(jp.types)))
			return nil
		}
		n.Type = jp.types[typeID]
	}
	return n
}

func isList(n *Node) bool {
	return n != nil && !n.IsNull && !n.IsReference && n.Mode == ModeList
}

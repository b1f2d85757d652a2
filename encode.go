package objcodec

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// encodeRoot walks the graph rooted at v into a node tree. A graph nested
// deeper than maxDepth leaves ErrDepthExceeded in p.err.
func (p *pass) encodeRoot(v any) *Node {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nullNode(p.newID(), TypeName{})
	}
	return p.visit(rv, rv.Type())
}

// visit dispatches v in a fixed precedence: null, reference, list, dictionary,
// enum, struct, primitive; anything else becomes a null node.
func (p *pass) visit(v reflect.Value, static reflect.Type) *Node {
	if p.depth >= p.maxDepth {
		if p.err == nil {
			p.log.Error("value nested too deep", FieldType(static), zap.Int("limit", p.maxDepth))
			p.err = errors.Wrapf(ErrDepthExceeded, "limit %d", p.maxDepth)
		}
		return nullNode(p.newID(), TypeNameOf(static))
	}
	p.depth++
	defer func() { p.depth-- }()

	// interfaces are encoded with their dynamic type.
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nullNode(p.newID(), TypeNameOf(static))
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nullNode(p.newID(), TypeNameOf(static))
	}

	t := v.Type()
	switch p.reg.info(t).shape {
	case shapePointer:
		if v.IsNil() {
			return nullNode(p.newID(), TypeNameOf(nonPointerType(t)))
		}
		key, ok := identity(v)
		if ok {
			if id, seen := p.refs.Lookup(key); seen {
				return refNode(id, TypeNameOf(nonPointerType(t)))
			}
		}
		id := p.newID()
		if ok {
			p.refs.Record(key, id)
		}
		elem := v.Elem()
		for elem.Kind() == reflect.Pointer {
			if elem.IsNil() {
				return nullNode(id, TypeNameOf(nonPointerType(t)))
			}
			elem = elem.Elem()
		}
		return p.content(elem, id)

	case shapeList, shapeDictionary:
		if (t.Kind() == reflect.Slice || t.Kind() == reflect.Map) && v.IsNil() {
			return nullNode(p.newID(), TypeNameOf(t))
		}
		key, ok := identity(v)
		if ok {
			if id, seen := p.refs.Lookup(key); seen {
				return refNode(id, TypeNameOf(t))
			}
		}
		id := p.newID()
		if ok {
			p.refs.Record(key, id)
		}
		return p.content(v, id)
	}
	return p.content(v, p.newID())
}

// content encodes a non-pointer value under an already assigned ID.
func (p *pass) content(v reflect.Value, id int32) *Node {
	t := v.Type()
	switch p.reg.info(t).shape {
	case shapeList:
		n := &Node{ID: id, Type: TypeNameOf(t), Mode: ModeList}
		n.Items = make([]*Node, v.Len())
		for i := range n.Items {
			// the declared element type drives every element.
			n.Items[i] = p.visit(v.Index(i), t.Elem())
		}
		return n

	case shapeDictionary:
		n := &Node{ID: id, Type: TypeNameOf(t), Mode: ModeDictionary}
		for _, k := range sortedKeys(v) {
			n.Keys = append(n.Keys, p.visit(k, t.Key()))
			n.Values = append(n.Values, p.visit(v.MapIndex(k), t.Elem()))
		}
		return n

	case shapeEnum:
		return &Node{ID: id, Type: TypeNameOf(t), Mode: ModeEnum, Value: enumValue(v)}

	case shapeStruct:
		return p.class(v, id)

	case shapePrimitive:
		name, val, err := encodePrimitive(v)
		if err != nil {
			p.log.Error("cannot encode value", FieldType(t), zap.Error(err))
			return nullNode(id, TypeNameOf(t))
		}
		return &Node{ID: id, Type: TypeName{Name: name}, Mode: ModePrimitive, Value: val}
	}

	p.log.Debug("unsupported value kind, emitting null", FieldType(t))
	return nullNode(id, TypeNameOf(t))
}

func (p *pass) class(v reflect.Value, id int32) *Node {
	t := v.Type()
	if !v.CanAddr() {
		// unexported members and properties need an addressable copy.
		cp := reflect.New(t).Elem()
		cp.Set(v)
		v = cp
	}
	members := p.reg.Members(t)
	n := &Node{ID: id, Type: TypeNameOf(t), Mode: ModeClass, Members: make([]Member, 0, len(members))}
	for _, m := range members {
		n.Members = append(n.Members, Member{Name: m.Name, Node: p.member(v, m)})
	}
	return n
}

// member reads one member; getter panics are logged and encode as null.
func (p *pass) member(sv reflect.Value, m MemberInfo) (n *Node) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("member getter failed", FieldType(m.Owner), FieldMember(m.Name), zap.Any("panic", r))
			n = nullNode(p.newID(), TypeNameOf(m.Type))
		}
	}()
	mv, ok := m.Get(sv)
	if !ok {
		return nullNode(p.newID(), TypeNameOf(m.Type))
	}
	return p.visit(mv, m.Type)
}

// sortedKeys orders map keys so output is reproducible: numerically for
// numbers, lexically for strings, by fmt text otherwise.
func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.SliceStable(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	return keys
}

func keyLess(a, b reflect.Value) bool {
	for a.Kind() == reflect.Interface && !a.IsNil() {
		a = a.Elem()
	}
	for b.Kind() == reflect.Interface && !b.IsNil() {
		b = b.Elem()
	}
	if a.Kind() == b.Kind() {
		switch {
		case a.CanInt():
			return a.Int() < b.Int()
		case a.CanUint():
			return a.Uint() < b.Uint()
		case a.CanFloat():
			return a.Float() < b.Float()
		case a.Kind() == reflect.String:
			return a.String() < b.String()
		case a.Kind() == reflect.Bool:
			return !a.Bool() && b.Bool()
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

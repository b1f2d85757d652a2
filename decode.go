package objcodec

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// decodeRoot rebuilds root into dst. A root that does not fit dst is logged
// like any other unassignable member and leaves dst untouched.
func (p *pass) decodeRoot(root *Node, dst reflect.Value) {
	if err := p.rebuild(root, dst); err != nil {
		p.log.Warn("cannot assign root", FieldType(dst.Type()), FieldNodeID(root.ID), zap.Error(err))
	}
}

func nullable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}

// rebuild fills the settable dst from n. An error means n as a whole does not
// fit dst; failures further down are logged where they happen.
func (p *pass) rebuild(n *Node, dst reflect.Value) error {
	if n == nil {
		return nil
	}
	if n.IsReference {
		return p.link(n, dst)
	}
	if n.IsNull {
		if nullable(dst.Kind()) {
			dst.SetZero()
		}
		return nil
	}

	t := dst.Type()
	switch p.reg.info(t).shape {
	case shapeInterface:
		ct, ok := p.resolveType(n, t)
		if !ok {
			p.log.Debug("no constructible type behind interface", FieldType(t), zap.Stringer("wire_type", n.Type))
			dst.SetZero()
			return nil
		}
		nv, ok := p.construct(ct)
		if !ok {
			dst.SetZero()
			return nil
		}
		if err := p.rebuild(n, nv); err != nil {
			return err
		}
		dst.Set(nv)

	case shapePointer:
		obj, ok := p.construct(t.Elem())
		if !ok {
			p.log.Debug("type is not constructible", FieldType(t.Elem()))
			dst.SetZero()
			return nil
		}
		ptr := obj.Addr()
		// registered before population so self references resolve to it.
		p.refs.Materialize(n.ID, ptr)
		if err := p.rebuild(n, obj); err != nil {
			return err
		}
		dst.Set(ptr)

	case shapeStruct:
		if n.Mode != ModeClass {
			return errors.Wrapf(ErrUnassignable, "%s node into %s", n.Mode, t)
		}
		if dst.CanAddr() {
			p.refs.Materialize(n.ID, dst.Addr())
		}
		p.populate(n, dst)

	case shapeList:
		if n.Mode != ModeList {
			return errors.Wrapf(ErrUnassignable, "%s node into %s", n.Mode, t)
		}
		if t.Kind() == reflect.Slice {
			s := reflect.MakeSlice(t, len(n.Items), len(n.Items))
			p.refs.Materialize(n.ID, s)
			dst.Set(s)
		}
		for i, item := range n.Items {
			if i >= dst.Len() {
				p.log.Debug("array shorter than payload, dropping items", FieldType(t), zap.Int("dropped", len(n.Items)-i))
				break
			}
			if err := p.rebuild(item, dst.Index(i)); err != nil {
				p.log.Warn("cannot assign element", FieldType(t), zap.Int("index", i), zap.Error(err))
			}
		}

	case shapeDictionary:
		if n.Mode == ModeClass && t.Key().Kind() == reflect.String {
			n = objectEntries(n)
		}
		if n.Mode != ModeDictionary || len(n.Keys) != len(n.Values) {
			return errors.Wrapf(ErrUnassignable, "%s node into %s", n.Mode, t)
		}
		m := reflect.MakeMapWithSize(t, len(n.Keys))
		p.refs.Materialize(n.ID, m)
		dst.Set(m)
		for i := range n.Keys {
			k := reflect.New(t.Key()).Elem()
			if err := p.rebuild(n.Keys[i], k); err != nil {
				p.log.Warn("cannot assign key", FieldType(t), zap.Int("index", i), zap.Error(err))
				continue
			}
			v := reflect.New(t.Elem()).Elem()
			if err := p.rebuild(n.Values[i], v); err != nil {
				p.log.Warn("cannot assign value", FieldType(t), zap.Int("index", i), zap.Error(err))
				continue
			}
			m.SetMapIndex(k, v)
		}

	case shapeEnum:
		if n.Mode != ModeEnum && n.Mode != ModePrimitive {
			return errors.Wrapf(ErrUnassignable, "%s node into %s", n.Mode, t)
		}
		if n.Value == nil {
			return nil
		}
		return assignEnum(dst, n.Value)

	case shapePrimitive:
		if n.Mode != ModePrimitive && n.Mode != ModeEnum {
			return errors.Wrapf(ErrUnassignable, "%s node into %s", n.Mode, t)
		}
		if n.Value == nil {
			// unknown primitive; already reported by the wire reader.
			return nil
		}
		return assignPrimitive(dst, n.Value)

	default:
		p.log.Debug("unsupported destination kind", FieldType(t))
	}
	return nil
}

// populate assigns wire members to the selected members of sv. Members missing
// from the wire keep their constructed value; unknown wire members are ignored.
func (p *pass) populate(n *Node, sv reflect.Value) {
	t := sv.Type()
	wire := lo.SliceToMap(n.Members, func(m Member) (string, *Node) { return m.Name, m.Node })
	for _, m := range p.reg.Members(t) {
		child, ok := wire[m.Name]
		if !ok {
			continue
		}
		delete(wire, m.Name)
		if err := p.assign(sv, m, child); err != nil {
			p.log.Warn("cannot assign member", FieldType(t), FieldMember(m.Name), FieldNodeID(child.ID), zap.Error(err))
		}
	}
	for name := range wire {
		p.log.Debug("ignoring unknown member", FieldType(t), FieldMember(name))
	}
}

// assign rebuilds one member. Setter panics are reported as errors.
func (p *pass) assign(sv reflect.Value, m MemberInfo, n *Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrUnassignable, "panic: %v", r)
		}
	}()
	if !m.Property {
		// a null member behind a nil embedded pointer leaves the pointer nil.
		dst, ok := m.field.value(sv, !n.IsNull)
		if !ok {
			return nil
		}
		return p.rebuild(n, dst)
	}
	tmp := reflect.New(m.Type).Elem()
	if err := p.rebuild(n, tmp); err != nil {
		return err
	}
	m.prop.set(sv.Addr(), tmp)
	return nil
}

// link resolves a reference node against values materialized earlier in the pass.
func (p *pass) link(n *Node, dst reflect.Value) error {
	v, ok := p.refs.Resolve(n.ID)
	if !ok {
		return errors.Wrapf(ErrUnresolvedReference, "id %d", n.ID)
	}
	switch {
	case dst.Kind() == reflect.Interface && v.Kind() == reflect.Pointer && p.valueRegistered(v.Elem().Type()) &&
		v.Elem().Type().AssignableTo(dst.Type()):
		// interfaces fed by a value sample receive copies, like the first occurrence did.
		dst.Set(v.Elem())
	case v.Type().AssignableTo(dst.Type()):
		dst.Set(v)
	case v.Kind() == reflect.Pointer && v.Elem().Type().AssignableTo(dst.Type()):
		// a struct-valued destination receives a copy of the shared instance.
		dst.Set(v.Elem())
	default:
		return errors.Wrapf(ErrUnassignable, "reference %d of %s into %s", n.ID, v.Type(), dst.Type())
	}
	return nil
}

// valueRegistered reports whether t itself, not a pointer to it, is what the
// registry hands to interfaces.
func (p *pass) valueRegistered(t reflect.Type) bool {
	rt, ok := p.reg.Lookup(TypeNameOf(t))
	return ok && rt == t
}

// construct returns a settable value of type t, initialized by a registered
// factory when there is one. ok is false when t cannot be default-constructed.
func (p *pass) construct(t reflect.Type) (reflect.Value, bool) {
	switch p.reg.info(t).shape {
	case shapeInterface, shapeUnsupported:
		return reflect.Value{}, false
	}
	if fn, ok := p.reg.factories.Load(t); ok {
		made := fn()
		if made.IsNil() {
			return reflect.Value{}, false
		}
		return made.Elem(), true
	}
	return reflect.New(t).Elem(), true
}

// CanConstruct reports whether values of t can be default-constructed:
// interfaces and unsupported kinds cannot, nor can types whose factory yields nil.
func (r *Registry) CanConstruct(t reflect.Type) bool {
	switch r.info(t).shape {
	case shapeInterface, shapeUnsupported:
		return false
	}
	if fn, ok := r.factories.Load(t); ok {
		return !fn().IsNil()
	}
	return true
}

// resolveType picks the concrete type an interface destination receives for n.
func (p *pass) resolveType(n *Node, iface reflect.Type) (reflect.Type, bool) {
	var ct reflect.Type
	switch n.Mode {
	case ModePrimitive:
		ct, _ = primitiveType(n.Type.Name)
	case ModeEnum:
		ct, _ = p.reg.Lookup(n.Type)
	case ModeClass:
		var ok bool
		if ct, ok = p.reg.Lookup(n.Type); !ok && n.Type.IsZero() {
			// a plain JSON object.
			ct = reflect.TypeFor[map[string]any]()
		}
	case ModeList:
		var ok bool
		if ct, ok = p.reg.Lookup(n.Type); !ok && n.Type.Assembly == "" {
			ct = reflect.TypeFor[[]any]()
		}
	case ModeDictionary:
		var ok bool
		if ct, ok = p.reg.Lookup(n.Type); !ok && n.Type.Assembly == "" {
			ct = reflect.TypeFor[map[any]any]()
			if lo.EveryBy(n.Keys, func(k *Node) bool { return k.Mode == ModePrimitive && k.Type.Name == "string" }) {
				ct = reflect.TypeFor[map[string]any]()
			}
		}
	}
	if ct == nil || !ct.AssignableTo(iface) {
		return nil, false
	}
	return ct, true
}

// objectEntries views the members of a class node as string-keyed entries.
func objectEntries(n *Node) *Node {
	d := &Node{ID: n.ID, Type: n.Type, Mode: ModeDictionary}
	for _, m := range n.Members {
		d.Keys = append(d.Keys, &Node{ID: NoID, Type: TypeName{Name: "string"}, Mode: ModePrimitive, Value: m.Name})
		d.Values = append(d.Values, m.Node)
	}
	return d
}

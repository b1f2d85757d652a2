package objcodec

import (
	"reflect"
	"sort"
	"strings"
	"unsafe"

	"github.com/samber/lo"
)

// shape is the closed set of categories a Go type falls into for the walker.
// It is decided once per type and cached.
type shape int

const (
	shapeUnsupported shape = iota
	shapePrimitive
	shapeEnum
	shapeList
	shapeDictionary
	shapeStruct
	shapePointer
	shapeInterface
)

type typeInfo struct {
	shape   shape
	members []MemberInfo
}

const tagName = "objcodec"

// Tag values understood on struct fields.
const (
	TagIgnore  = "ignore"
	TagInclude = "include"
)

// FieldInfo describes one selected struct field.
type FieldInfo struct {
	Name  string
	Type  reflect.Type
	Owner reflect.Type // struct type declaring the field
	index []int
	// private is set for unexported fields opted in with the include tag.
	private bool
	depth   int
}

// PropertyInfo describes one selected accessor pair.
type PropertyInfo struct {
	Name  string
	Type  reflect.Type
	Owner reflect.Type
	get   func(ptr reflect.Value) reflect.Value
	set   func(ptr reflect.Value, v reflect.Value)
}

// MemberInfo is a selected field or property with uniform access.
type MemberInfo struct {
	Name     string
	Type     reflect.Type
	Owner    reflect.Type
	Property bool

	field FieldInfo
	prop  PropertyInfo
}

// Get reads the member from the addressable struct sv.
// ok is false when an embedded pointer on the way to the field is nil.
func (m MemberInfo) Get(sv reflect.Value) (v reflect.Value, ok bool) {
	if m.Property {
		return m.prop.get(sv.Addr()), true
	}
	return m.field.value(sv, false)
}

func (f FieldInfo) value(sv reflect.Value, alloc bool) (reflect.Value, bool) {
	v := sv
	for i, x := range f.index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !alloc {
					return reflect.Value{}, false
				}
				settable(v).Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = settable(v.Field(x))
	}
	return v, true
}

// settable strips the read-only flag from an addressable value reached through
// an unexported field. Only fields the introspector selected get here.
func settable(v reflect.Value) reflect.Value {
	if v.CanSet() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

func (r *Registry) info(t reflect.Type) *typeInfo {
	if ti, ok := r.shapes.Load(t); ok {
		return ti
	}
	ti := &typeInfo{shape: classify(t)}
	if ti.shape == shapeStruct {
		ti.members = r.selectMembers(t)
	}
	ti, _ = r.shapes.LoadOrStore(t, ti)
	return ti
}

func classify(t reflect.Type) shape {
	switch t.Kind() {
	case reflect.Bool, reflect.String, reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128, reflect.Uintptr:
		return shapePrimitive
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if t.PkgPath() != "" {
			return shapeEnum
		}
		return shapePrimitive
	case reflect.Slice, reflect.Array:
		return shapeList
	case reflect.Map:
		return shapeDictionary
	case reflect.Struct:
		return shapeStruct
	case reflect.Pointer:
		return shapePointer
	case reflect.Interface:
		return shapeInterface
	}
	return shapeUnsupported
}

// skippedKind reports member types the introspector never selects.
func skippedKind(t reflect.Type) bool {
	switch nonPointerType(t).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return true
	}
	return false
}

// SelectFields returns the serializable fields of struct type t, sorted by name.
func (r *Registry) SelectFields(t reflect.Type) []FieldInfo {
	t = nonPointerType(t)
	if t.Kind() != reflect.Struct {
		return nil
	}
	return lo.FilterMap(r.info(t).members, func(m MemberInfo, _ int) (FieldInfo, bool) {
		return m.field, !m.Property
	})
}

// SelectProperties returns the serializable properties of struct type t, sorted by name.
func (r *Registry) SelectProperties(t reflect.Type) []PropertyInfo {
	t = nonPointerType(t)
	if t.Kind() != reflect.Struct {
		return nil
	}
	return lo.FilterMap(r.info(t).members, func(m MemberInfo, _ int) (PropertyInfo, bool) {
		return m.prop, m.Property
	})
}

// Members returns fields then properties of struct type t.
func (r *Registry) Members(t reflect.Type) []MemberInfo {
	t = nonPointerType(t)
	if t.Kind() != reflect.Struct {
		return nil
	}
	return r.info(t).members
}

// SelectFields uses the default registry.
func SelectFields(t reflect.Type) []FieldInfo { return defaultRegistry.SelectFields(t) }

// SelectProperties uses the default registry.
func SelectProperties(t reflect.Type) []PropertyInfo { return defaultRegistry.SelectProperties(t) }

func (r *Registry) selectMembers(t reflect.Type) []MemberInfo {
	fields := selectFields(t)
	taken := make(map[string]bool, len(fields))
	members := make([]MemberInfo, 0, len(fields))
	for _, f := range fields {
		taken[f.Name] = true
		members = append(members, MemberInfo{Name: f.Name, Type: f.Type, Owner: f.Owner, field: f})
	}
	for _, p := range r.selectProperties(t) {
		if taken[p.Name] {
			continue
		}
		members = append(members, MemberInfo{Name: p.Name, Type: p.Type, Owner: p.Owner, Property: true, prop: p})
	}
	return members
}

func parseTag(sf reflect.StructField) string {
	tag := sf.Tag.Get(tagName)
	if tag == "-" {
		return TagIgnore
	}
	return tag
}

// selectFields walks t and its embedded structs. A field declared closer to t
// shadows a deeper one of the same name; equal-depth duplicates are ambiguous
// and dropped.
func selectFields(t reflect.Type) []FieldInfo {
	var found []FieldInfo
	var walk func(st reflect.Type, index []int, depth int, path map[reflect.Type]bool)
	walk = func(st reflect.Type, index []int, depth int, path map[reflect.Type]bool) {
		path[st] = true
		defer delete(path, st)

		for i := 0; i < st.NumField(); i++ {
			sf := st.Field(i)
			tag := parseTag(sf)
			if tag == TagIgnore {
				continue
			}
			fieldIndex := append(append([]int(nil), index...), i)

			if sf.Anonymous {
				et := sf.Type
				if et.Kind() == reflect.Pointer {
					et = et.Elem()
				}
				if et.Kind() == reflect.Struct {
					if !path[et] {
						walk(et, fieldIndex, depth+1, path)
					}
					continue
				}
			}

			if !sf.IsExported() && tag != TagInclude {
				continue
			}
			if skippedKind(sf.Type) {
				continue
			}
			found = append(found, FieldInfo{
				Name:    sf.Name,
				Type:    sf.Type,
				Owner:   st,
				index:   fieldIndex,
				private: !sf.IsExported(),
				depth:   depth,
			})
		}
	}
	walk(t, nil, 0, map[reflect.Type]bool{})

	byName := lo.GroupBy(found, func(f FieldInfo) string { return f.Name })
	fields := make([]FieldInfo, 0, len(byName))
	for _, group := range byName {
		shallowest := lo.MinBy(group, func(a, b FieldInfo) bool { return a.depth < b.depth })
		if lo.CountBy(group, func(f FieldInfo) bool { return f.depth == shallowest.depth }) > 1 {
			continue
		}
		fields = append(fields, shallowest)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

// selectProperties finds exported Name()/SetName(v) method pairs on *t and
// merges the accessors registered for t. Registered accessors win.
func (r *Registry) selectProperties(t reflect.Type) []PropertyInfo {
	registered, _ := r.properties.Load(t)
	byName := make(map[string]PropertyInfo, len(registered))

	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		setter := pt.Method(i)
		name, ok := strings.CutPrefix(setter.Name, "Set")
		if !ok || name == "" || !isUpper(name[0]) {
			continue
		}
		getter, ok := pt.MethodByName(name)
		if !ok {
			continue
		}
		// receiver counts as the first input.
		if getter.Type.NumIn() != 1 || getter.Type.NumOut() != 1 ||
			setter.Type.NumIn() != 2 || setter.Type.NumOut() != 0 ||
			setter.Type.In(1) != getter.Type.Out(0) {
			continue
		}
		vt := getter.Type.Out(0)
		if skippedKind(vt) {
			continue
		}
		gi, si := getter.Index, setter.Index
		byName[name] = PropertyInfo{
			Name:  name,
			Type:  vt,
			Owner: t,
			get: func(p reflect.Value) reflect.Value {
				return p.Method(gi).Call(nil)[0]
			},
			set: func(p reflect.Value, v reflect.Value) {
				p.Method(si).Call([]reflect.Value{v})
			},
		}
	}
	for _, p := range registered {
		byName[p.Name] = p
	}

	props := lo.Values(byName)
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	return props
}

func isUpper(c byte) bool { return 'A' <= c && c <= 'Z' }

package objcodec

import (
	"reflect"
	"unsafe"
)

// refKey identifies a value with reference semantics. The type is part of the
// key because a struct and its first field share an address.
type refKey struct {
	t reflect.Type
	p unsafe.Pointer
	n int
}

// ReferenceTable tracks identities during one pass. Encoding maps identities
// to node IDs; decoding maps node IDs to the values materialized for them.
type ReferenceTable struct {
	ids    map[refKey]int32
	values map[int32]reflect.Value
}

func newReferenceTable() *ReferenceTable {
	return &ReferenceTable{
		ids:    make(map[refKey]int32),
		values: make(map[int32]reflect.Value),
	}
}

// identity returns the key of v when v has reference semantics: non-nil
// pointers and maps, and slices with a backing array. Pointers and slices of
// zero-size types have none, since distinct zero-size values may share an address.
func identity(v reflect.Value) (refKey, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() || (v.Kind() == reflect.Pointer && v.Type().Elem().Size() == 0) {
			return refKey{}, false
		}
		return refKey{t: v.Type(), p: v.UnsafePointer()}, true
	case reflect.Slice:
		if v.Cap() == 0 || v.Type().Elem().Size() == 0 {
			return refKey{}, false
		}
		return refKey{t: v.Type(), p: v.UnsafePointer(), n: v.Len()}, true
	}
	return refKey{}, false
}

// Lookup returns the ID already assigned to key.
func (rt *ReferenceTable) Lookup(key refKey) (int32, bool) {
	id, ok := rt.ids[key]
	return id, ok
}

// Record assigns id to key. Called before recursing into the value.
func (rt *ReferenceTable) Record(key refKey, id int32) {
	rt.ids[key] = id
}

// Materialize binds id to v unless id is anonymous or already bound.
// Called right after construction, before the value is populated.
func (rt *ReferenceTable) Materialize(id int32, v reflect.Value) {
	if id == NoID {
		return
	}
	if _, ok := rt.values[id]; ok {
		return
	}
	rt.values[id] = v
}

// Resolve returns the value materialized for id.
func (rt *ReferenceTable) Resolve(id int32) (reflect.Value, bool) {
	v, ok := rt.values[id]
	return v, ok
}

// Len returns the number of identities recorded or materialized.
func (rt *ReferenceTable) Len() int { return len(rt.ids) + len(rt.values) }

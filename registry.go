package objcodec

import (
	"reflect"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// Registry holds the type-shape state a codec needs beyond what reflection
// reveals: wire names resolvable back to Go types, default-value factories and
// explicitly registered properties. It is filled at init time and read during
// passes; it never holds per-instance state.
type Registry struct {
	types      *xsync.Map[string, reflect.Type]
	factories  *xsync.Map[reflect.Type, func() reflect.Value]
	properties *xsync.Map[reflect.Type, []PropertyInfo]

	// shapes caches introspection results per type.
	shapes *xsync.Map[reflect.Type, *typeInfo]
}

// NewRegistry creates a registry that resolves the common untyped containers.
func NewRegistry() *Registry {
	r := &Registry{
		types:      xsync.NewMap[string, reflect.Type](),
		factories:  xsync.NewMap[reflect.Type, func() reflect.Value](),
		properties: xsync.NewMap[reflect.Type, []PropertyInfo](),
		shapes:     xsync.NewMap[reflect.Type, *typeInfo](),
	}
	r.Register([]any(nil), []string(nil), map[string]any(nil), map[string]string(nil))
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used by codecs built without WithRegistry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register records the types of samples so that values of those types can be
// rebuilt behind interface-typed members. Registering a pointer sample, e.g.
// (*Dog)(nil), makes interfaces receive *Dog; a value sample makes them receive Dog.
// With a value sample every interface holding a shared *Dog gets its own Dog
// copy; register a pointer sample to keep the instance shared.
func (r *Registry) Register(samples ...any) {
	for _, s := range samples {
		t := reflect.TypeOf(s)
		if t == nil {
			continue
		}
		r.types.Store(TypeNameOf(nonPointerType(t)).String(), t)
	}
}

// Lookup resolves a wire type name registered with Register.
func (r *Registry) Lookup(name TypeName) (reflect.Type, bool) {
	if name.IsZero() {
		return nil, false
	}
	return r.types.Load(name.String())
}

// Register records sample types in the default registry.
func Register(samples ...any) { defaultRegistry.Register(samples...) }

// RegisterFactoryIn makes r construct T through fn instead of a zero value,
// so that members missing from a payload keep fn's defaults. A factory
// returning nil marks T as not constructible: it decodes to nil.
func RegisterFactoryIn[T any](r *Registry, fn func() *T) {
	t := reflect.TypeFor[T]()
	r.factories.Store(t, func() reflect.Value { return reflect.ValueOf(fn()) })
}

// RegisterFactory registers fn in the default registry.
func RegisterFactory[T any](fn func() *T) { RegisterFactoryIn(defaultRegistry, fn) }

// RegisterPropertyIn opts an accessor pair into serialization as property name of T.
// This is the only way to include accessors that are not exported method pairs.
func RegisterPropertyIn[T, V any](r *Registry, name string, get func(*T) V, set func(*T, V)) {
	if name == "" || strings.HasPrefix(name, "$") {
		panic("objcodec: invalid property name " + `"` + name + `"`)
	}
	owner := reflect.TypeFor[T]()
	prop := PropertyInfo{
		Name:  name,
		Type:  reflect.TypeFor[V](),
		Owner: owner,
		get: func(p reflect.Value) reflect.Value {
			v := get(p.Interface().(*T))
			return reflect.ValueOf(&v).Elem()
		},
		set: func(p reflect.Value, v reflect.Value) {
			var val V
			reflect.ValueOf(&val).Elem().Set(v)
			set(p.Interface().(*T), val)
		},
	}

	props, _ := r.properties.Load(owner)
	props = append(append([]PropertyInfo(nil), props...), prop)
	r.properties.Store(owner, props)
	// the cached shape of owner no longer reflects its properties.
	r.shapes.Delete(owner)
}

// RegisterProperty registers a property in the default registry.
func RegisterProperty[T, V any](name string, get func(*T) V, set func(*T, V)) {
	RegisterPropertyIn(defaultRegistry, name, get, set)
}

// nonPointerType strips every pointer level from t.
func nonPointerType(t reflect.Type) reflect.Type {
	if t == nil {
		return t
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

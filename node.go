package objcodec

import (
	"reflect"
	"strconv"
	"strings"
)

// Mode discriminates the payload a Node carries.
type Mode int32

const (
	ModePrimitive Mode = iota
	ModeEnum
	ModeList
	ModeClass
	ModeDictionary
)

var modeNames = [...]string{"primitive", "enum", "list", "class", "dictionary"}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool { return m >= ModePrimitive && m <= ModeDictionary }

// NoID marks a node that carries no identity, such as a JSON value nobody references.
const NoID int32 = -1

// TypeName identifies a Go type on the wire: Assembly is the package path,
// Name the type name. Unnamed types carry their reflect string and no Assembly.
type TypeName struct {
	Assembly string
	Name     string
}

// TypeNameOf returns the wire name of t.
func TypeNameOf(t reflect.Type) TypeName {
	if t == nil {
		return TypeName{}
	}
	if t.Name() != "" {
		return TypeName{Assembly: t.PkgPath(), Name: t.Name()}
	}
	return TypeName{Name: t.String()}
}

// String returns the qualified form "Name, Assembly", or Name when Assembly is empty.
func (n TypeName) String() string {
	if n.Assembly == "" {
		return n.Name
	}
	return n.Name + ", " + n.Assembly
}

// IsZero reports whether n names nothing.
func (n TypeName) IsZero() bool { return n.Name == "" }

// ParseTypeName is the inverse of TypeName.String.
func ParseTypeName(s string) TypeName {
	if i := strings.LastIndex(s, ", "); i >= 0 {
		return TypeName{Name: s[:i], Assembly: s[i+2:]}
	}
	return TypeName{Name: s}
}

// Member is one named child of a class node.
type Member struct {
	Name string
	Node *Node
}

// Node is one unit of the transient tree built during a single Marshal or
// Unmarshal call. Nodes never outlive the call that produced them.
type Node struct {
	ID          int32
	Type        TypeName
	IsNull      bool
	IsReference bool
	Mode        Mode

	// Value holds the scalar of a primitive or enum node.
	Value any
	// Items are the elements of a list node.
	Items []*Node
	// Members are the children of a class node.
	Members []Member
	// Keys and Values are the parallel entries of a dictionary node.
	Keys   []*Node
	Values []*Node
}

// Member returns the child named name, or nil.
func (n *Node) Member(name string) *Node {
	for _, m := range n.Members {
		if m.Name == name {
			return m.Node
		}
	}
	return nil
}

// Walk calls fn for n and every node below it, depth first.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Items {
		c.Walk(fn)
	}
	for _, m := range n.Members {
		m.Node.Walk(fn)
	}
	for i := range n.Keys {
		n.Keys[i].Walk(fn)
		n.Values[i].Walk(fn)
	}
}

func nullNode(id int32, t TypeName) *Node {
	return &Node{ID: id, Type: t, IsNull: true}
}

func refNode(id int32, t TypeName) *Node {
	return &Node{ID: id, Type: t, IsReference: true}
}

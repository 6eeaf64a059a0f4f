// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package atom implements the logical model
// of resource documents: flat collections of
// resources, each identified by a subject and
// described by an ordered list of properties.
package atom

import (
	"math"
)

// Kind is the kind of a Value.
type Kind uint8

const (
	NullKind Kind = iota
	StringKind
	NumberKind
	BoolKind
	ListKind
	RefKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case StringKind:
		return "string"
	case NumberKind:
		return "number"
	case BoolKind:
		return "bool"
	case ListKind:
		return "list"
	case RefKind:
		return "ref"
	default:
		return "invalid"
	}
}

// Value is a property value.
//
// A Value is one of
//
//	String, Number, Bool, List, Ref, Null
//
// The set is closed: the unexported method
// keeps other packages from adding variants.
type Value interface {
	Kind() Kind

	equal(Value) bool
}

var (
	_ Value = String("")
	_ Value = Number(0)
	_ Value = Bool(false)
	_ Value = List(nil)
	_ Value = Ref("")
	_ Value = Null{}
)

// String is a scalar string value.
type String string

func (s String) Kind() Kind { return StringKind }

func (s String) equal(v Value) bool {
	s2, ok := v.(String)
	return ok && s2 == s
}

// Number is a numeric value.
type Number float64

func (n Number) Kind() Kind { return NumberKind }

func (n Number) equal(v Value) bool {
	n2, ok := v.(Number)
	return ok && n2 == n
}

// Finite returns whether n is neither NaN
// nor an infinity. Only finite numbers have
// a textual encoding.
func (n Number) Finite() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Bool is a boolean value.
type Bool bool

func (b Bool) Kind() Kind { return BoolKind }

func (b Bool) equal(v Value) bool {
	b2, ok := v.(Bool)
	return ok && b2 == b
}

// List is an ordered list of values.
type List []Value

func (l List) Kind() Kind { return ListKind }

func (l List) equal(v Value) bool {
	l2, ok := v.(List)
	if !ok || len(l2) != len(l) {
		return false
	}
	for i := range l {
		if !Equal(l[i], l2[i]) {
			return false
		}
	}
	return true
}

// Ref is a reference to another resource
// by its subject. A Ref is never an embedded
// copy of the resource it points to.
type Ref string

func (r Ref) Kind() Kind { return RefKind }

func (r Ref) equal(v Value) bool {
	r2, ok := v.(Ref)
	return ok && r2 == r
}

// Null is the null value.
type Null struct{}

func (Null) Kind() Kind { return NullKind }

func (Null) equal(v Value) bool {
	_, ok := v.(Null)
	return ok
}

// Equal returns whether a and b are
// structurally equal. Two nil values
// are equal to each other and to nothing else.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.equal(b)
}

// Property is one key/value pair of a Resource.
type Property struct {
	Key   string
	Value Value
}

// Resource is a subject-identified record.
type Resource struct {
	// Subject identifies the resource.
	// It is usually a URL, but no URL
	// syntax is enforced.
	Subject string
	// Props are the properties of the
	// resource in presentation order.
	Props []Property
}

// Get returns the value of the property
// with the given key.
func (r *Resource) Get(key string) (Value, bool) {
	for i := range r.Props {
		if r.Props[i].Key == key {
			return r.Props[i].Value, true
		}
	}
	return nil, false
}

// Set sets a property value, appending the
// property if it is not already present.
func (r *Resource) Set(key string, v Value) {
	for i := range r.Props {
		if r.Props[i].Key == key {
			r.Props[i].Value = v
			return
		}
	}
	r.Props = append(r.Props, Property{Key: key, Value: v})
}

// Equal returns whether r and o have the
// same subject and the same properties
// in the same order.
func (r *Resource) Equal(o *Resource) bool {
	if r.Subject != o.Subject || len(r.Props) != len(o.Props) {
		return false
	}
	for i := range r.Props {
		if r.Props[i].Key != o.Props[i].Key ||
			!Equal(r.Props[i].Value, o.Props[i].Value) {
			return false
		}
	}
	return true
}

// Document is an ordered set of resources.
type Document struct {
	Resources []Resource
}

// Equal returns whether d and o contain
// equal resources in the same order.
func (d *Document) Equal(o *Document) bool {
	if len(d.Resources) != len(o.Resources) {
		return false
	}
	for i := range d.Resources {
		if !d.Resources[i].Equal(&o.Resources[i]) {
			return false
		}
	}
	return true
}

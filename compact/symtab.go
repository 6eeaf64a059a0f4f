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

package compact

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// URLID is the id of an interned string.
type URLID uint32

// Symtab is an append-only interning table.
// Ids are assigned from 0 in the order in
// which distinct strings are first interned.
//
// The zero value of Symtab is an empty table
// ready to use.
type Symtab struct {
	interned []string         // id -> string lookup
	toindex  map[string]URLID // string -> id lookup
	memsize  int
}

// Intern interns the given string
// if it is not already interned
// and returns the associated id.
func (s *Symtab) Intern(x string) URLID {
	if s.toindex == nil {
		s.toindex = make(map[string]URLID)
	}
	if id, ok := s.toindex[x]; ok {
		return id
	}
	id := URLID(len(s.interned))
	s.toindex[x] = id
	s.append(x)
	s.memsize += len(x)
	return id
}

// Symbolize returns the id associated
// with x, or (0, false) if x has not
// been interned.
func (s *Symtab) Symbolize(x string) (URLID, bool) {
	id, ok := s.toindex[x]
	return id, ok
}

// Lookup gets the string associated
// with the given id.
// This returns ("", false) when the
// id is not present in the table.
func (s *Symtab) Lookup(id URLID) (string, bool) {
	if int(id) < len(s.interned) {
		return s.interned[id], true
	}
	return "", false
}

// Get gets the string associated
// with the given id, or the empty
// string when there is no such id.
func (s *Symtab) Get(id URLID) string {
	str, _ := s.Lookup(id)
	return str
}

// Len returns the number of interned strings.
func (s *Symtab) Len() int { return len(s.interned) }

// Size returns the total length of
// the interned strings in bytes.
func (s *Symtab) Size() int { return s.memsize }

// Strings returns a copy of the interned
// strings in id order.
func (s *Symtab) Strings() []string {
	return slices.Clone(s.interned)
}

// Reset resets a table so that it
// no longer contains any strings.
func (s *Symtab) Reset() {
	s.interned = s.interned[:0]
	s.memsize = 0
	if s.toindex != nil {
		maps.Clear(s.toindex)
	}
}

// Equal checks if two tables intern the
// same strings with the same ids.
func (s *Symtab) Equal(o *Symtab) bool {
	return slices.Equal(s.interned, o.interned)
}

// CloneInto performs a deep copy
// of s into o. CloneInto reuses the
// storage of o where the two tables
// share a common prefix.
func (s *Symtab) CloneInto(o *Symtab) {
	// skip common prefix:
	i := 0
	for i < len(o.interned) && i < len(s.interned) && s.interned[i] == o.interned[i] {
		i++
	}
	if o.toindex == nil {
		o.toindex = make(map[string]URLID, len(s.interned))
	}
	for j := i; j < len(o.interned); j++ {
		if id, ok := o.toindex[o.interned[j]]; ok && int(id) == j {
			delete(o.toindex, o.interned[j])
		}
	}
	o.interned = o.interned[:i]
	for ; i < len(s.interned); i++ {
		o.toindex[s.interned[i]] = URLID(i)
		o.interned = append(o.interned, s.interned[i])
	}
	o.memsize = s.memsize
}

func (s *Symtab) append(v string) {
	s.interned = append(s.interned, v)
}

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
	"encoding/binary"

	"github.com/dchest/siphash"
	"golang.org/x/exp/slices"
)

// ShapeID is the id of a shape: an ordered
// sequence of property ids.
type ShapeID uint32

// fixed keys keep shape hashing
// deterministic across processes
const (
	shapeKey0 = 0x736861706573686b
	shapeKey1 = 0x61746f6d7061636b
)

func hashShape(buf []byte, ids []URLID) ([]byte, uint64) {
	buf = buf[:0]
	for _, id := range ids {
		buf = binary.AppendUvarint(buf, uint64(id))
	}
	return buf, siphash.Hash(shapeKey0, shapeKey1, buf)
}

// shapeRegistry assigns shape ids to property
// id sequences. Sequences are compared in order,
// so the same set of properties presented in a
// different order is a different shape.
type shapeRegistry struct {
	shapes [][]URLID
	// hash -> shapes with that hash
	byhash map[uint64][]ShapeID
	buf    []byte
}

// classify returns the id of the shape
// matching ids, registering a new shape
// if none does. The registry keeps its own
// copy of ids.
func (r *shapeRegistry) classify(ids []URLID) ShapeID {
	if r.byhash == nil {
		r.byhash = make(map[uint64][]ShapeID)
	}
	var h uint64
	r.buf, h = hashShape(r.buf, ids)
	for _, sid := range r.byhash[h] {
		if slices.Equal(r.shapes[sid], ids) {
			return sid
		}
	}
	sid := ShapeID(len(r.shapes))
	r.shapes = append(r.shapes, slices.Clone(ids))
	r.byhash[h] = append(r.byhash[h], sid)
	return sid
}

func (r *shapeRegistry) len() int { return len(r.shapes) }

func (r *shapeRegistry) cloneInto(o *shapeRegistry) {
	o.shapes = make([][]URLID, len(r.shapes))
	o.byhash = make(map[uint64][]ShapeID, len(r.byhash))
	for i := range r.shapes {
		o.shapes[i] = slices.Clone(r.shapes[i])
	}
	for h, ids := range r.byhash {
		o.byhash[h] = slices.Clone(ids)
	}
}

// export returns a copy of the shape table.
func (r *shapeRegistry) export() [][]URLID {
	out := make([][]URLID, len(r.shapes))
	for i := range r.shapes {
		out[i] = append([]URLID{}, r.shapes[i]...)
	}
	return out
}

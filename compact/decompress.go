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
	"fmt"
	"strconv"

	"github.com/SnellerInc/atompack/atom"
)

// Decompress reconstructs the document
// that was compacted into a.
//
// Decompress only reads a, so it may be
// called concurrently on the same Artifact.
// Errors wrap ErrCorruptTable, ErrShapeMismatch,
// or ErrVersionMismatch; no document is
// returned on error.
func Decompress(a *Artifact) (*atom.Document, error) {
	if a == nil {
		return nil, fmt.Errorf("compact.Decompress: %w: nil artifact", ErrCorruptTable)
	}
	if err := checkVersion(a.Version, a.AbbrevVersion); err != nil {
		return nil, fmt.Errorf("compact.Decompress: %w", err)
	}
	d := &decoder{a: a}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("compact.Decompress: %w", err)
	}
	doc := &atom.Document{
		Resources: make([]atom.Resource, len(a.Records)),
	}
	for i := range a.Records {
		if err := d.record(&a.Records[i], &doc.Resources[i]); err != nil {
			return nil, fmt.Errorf("compact.Decompress: record %d: %w", i, err)
		}
	}
	return doc, nil
}

type decoder struct {
	a *Artifact
	// pool key expected for each property id
	keys map[URLID]PoolKey
}

func (d *decoder) url(id URLID) (string, error) {
	if int(id) >= len(d.a.URLs) {
		return "", fmt.Errorf("%w: url id %d out of range [0, %d)", ErrCorruptTable, id, len(d.a.URLs))
	}
	return d.a.URLs[id], nil
}

// validate checks the invariants of the
// tables that records cannot violate on their own.
func (d *decoder) validate() error {
	a := d.a
	seen := make(map[string]URLID, len(a.URLs))
	for i, u := range a.URLs {
		if j, ok := seen[u]; ok {
			return fmt.Errorf("%w: url %q interned as both %d and %d", ErrCorruptTable, u, j, i)
		}
		seen[u] = URLID(i)
	}
	for id, code := range a.Abbrev {
		u, err := d.url(id)
		if err != nil {
			return fmt.Errorf("abbreviation %q: %w", code, err)
		}
		if want, ok := Expand(code); !ok || want != u {
			return fmt.Errorf("%w: abbreviation %q does not name %q", ErrCorruptTable, code, u)
		}
	}
	var buf []byte
	shapes := make(map[string]int, len(a.Shapes))
	d.keys = make(map[URLID]PoolKey)
	for i, shape := range a.Shapes {
		for j, id := range shape {
			if _, err := d.url(id); err != nil {
				return fmt.Errorf("shape %d: %w", i, err)
			}
			for k := 0; k < j; k++ {
				if shape[k] == id {
					return fmt.Errorf("%w: shape %d repeats property %d", ErrCorruptTable, i, id)
				}
			}
			if code, ok := a.Abbrev[id]; ok {
				d.keys[id] = PoolKey(code)
			} else {
				d.keys[id] = PoolKey(strconv.FormatUint(uint64(id), 10))
			}
		}
		buf, _ = hashShape(buf, shape)
		if j, ok := shapes[string(buf)]; ok {
			return fmt.Errorf("%w: shapes %d and %d are identical", ErrCorruptTable, j, i)
		}
		shapes[string(buf)] = i
	}
	for key, values := range a.Pools {
		index := make(map[string]struct{}, len(values))
		for _, v := range values {
			if _, ok := index[v]; ok {
				return fmt.Errorf("%w: pool %q holds %q twice", ErrCorruptTable, key, v)
			}
			index[v] = struct{}{}
		}
	}
	return nil
}

func (d *decoder) record(rec *Record, dst *atom.Resource) error {
	subject, err := d.url(rec.SubjectID)
	if err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if int(rec.ShapeID) >= len(d.a.Shapes) {
		return fmt.Errorf("%w: shape id %d out of range [0, %d)", ErrCorruptTable, rec.ShapeID, len(d.a.Shapes))
	}
	shape := d.a.Shapes[rec.ShapeID]
	if len(rec.Values) != len(shape) {
		return fmt.Errorf("%w: %d values for shape %d of %d properties",
			ErrShapeMismatch, len(rec.Values), rec.ShapeID, len(shape))
	}
	dst.Subject = subject
	if len(shape) == 0 {
		return nil
	}
	dst.Props = make([]atom.Property, len(shape))
	for j, id := range shape {
		v, err := d.value(d.keys[id], &rec.Values[j])
		if err != nil {
			return fmt.Errorf("property %q: %w", d.a.URLs[id], err)
		}
		dst.Props[j] = atom.Property{Key: d.a.URLs[id], Value: v}
	}
	return nil
}

func (d *decoder) value(key PoolKey, v *ValueRef) (atom.Value, error) {
	switch v.Kind {
	case RefNull:
		return atom.Null{}, nil
	case RefPool:
		if v.Pool != key {
			return nil, fmt.Errorf("%w: pool %q used for a property whose pool is %q", ErrCorruptTable, v.Pool, key)
		}
		pool, ok := d.a.Pools[key]
		if !ok {
			return nil, fmt.Errorf("%w: no pool %q", ErrCorruptTable, key)
		}
		if v.Index < 0 || v.Index >= len(pool) {
			return nil, fmt.Errorf("%w: index %d out of range for pool %q of %d values",
				ErrCorruptTable, v.Index, key, len(pool))
		}
		return atom.String(pool[v.Index]), nil
	case RefNumber:
		return atom.Number(v.Num), nil
	case RefBool:
		return atom.Bool(v.Bool), nil
	case RefResource:
		s, err := d.url(v.ID)
		if err != nil {
			return nil, err
		}
		return atom.Ref(s), nil
	case RefArray:
		out := make(atom.List, len(v.Items))
		for i := range v.Items {
			item, err := d.value(key, &v.Items[i])
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown value kind %s", ErrCorruptTable, v.Kind)
	}
}

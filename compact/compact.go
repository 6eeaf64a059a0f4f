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

// Package compact implements lossless
// structural compaction of resource documents.
//
// Compact interns subjects and property URLs,
// stores string values in per-property pools,
// and groups resources by their ordered set of
// properties. The resulting Artifact embeds all
// of its tables, so Decompress needs nothing
// but the Artifact itself.
package compact

import (
	"fmt"
	"unicode/utf8"

	"github.com/SnellerInc/atompack/atom"
)

// Stats describes the result of one compaction.
type Stats struct {
	// OriginalSize is the size of the canonical
	// JSON encoding of the input document.
	OriginalSize int `json:"originalSizeBytes"`
	// CompressedSize is the size of the JSON
	// encoding of the artifact without its stats.
	CompressedSize int `json:"compressedSizeBytes"`
	// Ratio is 1 - CompressedSize/OriginalSize,
	// or 0 when OriginalSize is 0.
	Ratio float64 `json:"compressionRatio"`

	Resources             int `json:"resources"`
	URLs                  int `json:"urls"`
	Shapes                int `json:"shapes"`
	PooledStrings         int `json:"pooledStrings"`
	StringsDeduplicated   int `json:"stringsDeduplicated"`
	PropertiesAbbreviated int `json:"propertiesAbbreviated"`
}

func ratio(original, compressed int) float64 {
	if original == 0 {
		return 0
	}
	return 1 - float64(compressed)/float64(original)
}

// Dictionary is a set of compaction tables
// owned by the caller. Threading one Dictionary
// through several compactions (see Compactor.Dict)
// keeps ids stable across the resulting artifacts;
// each artifact still embeds a full copy of the
// tables.
//
// A Dictionary is not safe for concurrent use.
type Dictionary struct {
	urls   Symtab
	pools  poolSet
	shapes shapeRegistry
}

// NewDictionary returns an empty Dictionary.
func NewDictionary() *Dictionary { return new(Dictionary) }

// URLs returns the number of interned strings.
func (d *Dictionary) URLs() int { return d.urls.Len() }

// Shapes returns the number of distinct shapes.
func (d *Dictionary) Shapes() int { return d.shapes.len() }

// Strings returns the number of distinct
// pooled string values.
func (d *Dictionary) Strings() int { return d.pools.distinct }

// Reset empties the dictionary.
func (d *Dictionary) Reset() { *d = Dictionary{} }

func (d *Dictionary) cloneInto(o *Dictionary) {
	d.urls.CloneInto(&o.urls)
	d.pools.cloneInto(&o.pools)
	d.shapes.cloneInto(&o.shapes)
}

// Compactor compacts documents.
// The zero value uses fresh tables for
// every document.
type Compactor struct {
	// Dict, if non-nil, is extended by each
	// compaction instead of starting from
	// empty tables. A compaction that fails
	// leaves Dict unchanged.
	Dict *Dictionary
	// Logf, if non-nil, is used to log
	// a summary of each compaction.
	Logf func(f string, args ...interface{})
}

func (c *Compactor) logf(f string, args ...interface{}) {
	if c.Logf != nil {
		c.Logf(f, args...)
	}
}

// Compact compacts doc using fresh tables.
func Compact(doc *atom.Document) (*Artifact, error) {
	var c Compactor
	return c.Compact(doc)
}

// Compact compacts doc into a self-contained Artifact.
//
// Errors wrap ErrInvalidInput or ErrUnsupportedValue
// and identify the offending resource. No artifact
// is returned on error.
func (c *Compactor) Compact(doc *atom.Document) (*Artifact, error) {
	if doc == nil {
		return nil, fmt.Errorf("compact: %w: nil document", ErrInvalidInput)
	}
	e := &encoder{dict: new(Dictionary)}
	if c.Dict != nil {
		c.Dict.cloneInto(e.dict)
	}
	a, err := e.run(doc)
	if err != nil {
		return nil, err
	}
	if c.Dict != nil {
		*c.Dict = *e.dict
	}
	c.logf("compacted %d resources: %d urls, %d shapes, %d pooled strings, %d -> %d bytes (ratio %.3f)",
		a.Stats.Resources, a.Stats.URLs, a.Stats.Shapes, a.Stats.PooledStrings,
		a.Stats.OriginalSize, a.Stats.CompressedSize, a.Stats.Ratio)
	return a, nil
}

type encoder struct {
	dict *Dictionary
	keys map[URLID]PoolKey

	deduplicated int
	abbreviated  int
}

func (e *encoder) run(doc *atom.Document) (*Artifact, error) {
	records := make([]Record, 0, len(doc.Resources))
	for i := range doc.Resources {
		rec, err := e.resource(&doc.Resources[i])
		if err != nil {
			return nil, fmt.Errorf("compact: resource %d: %w", i, err)
		}
		records = append(records, rec)
	}
	a := &Artifact{
		Version:       FormatVersion,
		AbbrevVersion: AbbrevVersion,
		URLs:          e.dict.urls.Strings(),
		Abbrev:        e.abbrevTable(),
		Pools:         e.dict.pools.export(),
		Shapes:        e.dict.shapes.export(),
		Records:       records,
	}
	if a.URLs == nil {
		a.URLs = []string{}
	}
	body, err := a.encodeBody()
	if err != nil {
		return nil, fmt.Errorf("compact: encoding artifact: %w", err)
	}
	original := doc.EncodedSize()
	a.Stats = Stats{
		OriginalSize:          original,
		CompressedSize:        len(body),
		Ratio:                 ratio(original, len(body)),
		Resources:             len(records),
		URLs:                  len(a.URLs),
		Shapes:                len(a.Shapes),
		PooledStrings:         e.dict.pools.distinct,
		StringsDeduplicated:   e.deduplicated,
		PropertiesAbbreviated: e.abbreviated,
	}
	return a, nil
}

// resource interns everything r refers to
// and then encodes it as a Record.
func (e *encoder) resource(r *atom.Resource) (Record, error) {
	if r.Subject == "" {
		return Record{}, fmt.Errorf("%w: missing subject", ErrInvalidInput)
	}
	if !utf8.ValidString(r.Subject) {
		return Record{}, fmt.Errorf("%w: subject %q is not valid UTF-8", ErrInvalidInput, r.Subject)
	}
	urls := &e.dict.urls
	sid := urls.Intern(r.Subject)
	ids := make([]URLID, len(r.Props))
	for j := range r.Props {
		p := &r.Props[j]
		if p.Key == "" {
			return Record{}, fmt.Errorf("%w: property %d of %q has an empty key", ErrInvalidInput, j, r.Subject)
		}
		if !utf8.ValidString(p.Key) {
			return Record{}, fmt.Errorf("%w: property key %q of %q is not valid UTF-8", ErrInvalidInput, p.Key, r.Subject)
		}
		id := urls.Intern(p.Key)
		for k := 0; k < j; k++ {
			if ids[k] == id {
				return Record{}, fmt.Errorf("%w: property %q repeated in %q", ErrInvalidInput, p.Key, r.Subject)
			}
		}
		ids[j] = id
		if _, ok := Abbreviate(p.Key); ok {
			e.abbreviated++
		}
		if err := e.internRefs(p.Value); err != nil {
			return Record{}, fmt.Errorf("%q: property %q: %w", r.Subject, p.Key, err)
		}
	}

	rec := Record{
		SubjectID: sid,
		ShapeID:   e.dict.shapes.classify(ids),
		Values:    make([]ValueRef, len(r.Props)),
	}
	for j := range r.Props {
		rec.Values[j] = e.encode(e.poolKey(ids[j]), r.Props[j].Value)
	}
	return rec, nil
}

// internRefs interns the subjects referenced by v
// and rejects values that cannot be encoded.
// A Ref is interned, never followed, so cycles
// between resources need no special handling.
func (e *encoder) internRefs(v atom.Value) error {
	switch v := v.(type) {
	case atom.Ref:
		if !utf8.ValidString(string(v)) {
			return fmt.Errorf("%w: reference %q is not valid UTF-8", ErrUnsupportedValue, string(v))
		}
		e.dict.urls.Intern(string(v))
	case atom.String:
		if !utf8.ValidString(string(v)) {
			return fmt.Errorf("%w: string %q is not valid UTF-8", ErrUnsupportedValue, string(v))
		}
	case atom.List:
		for i := range v {
			if err := e.internRefs(v[i]); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	case atom.Number:
		if !v.Finite() {
			return fmt.Errorf("%w: non-finite number %v", ErrUnsupportedValue, float64(v))
		}
	case atom.Bool, atom.Null:
	case nil:
		return fmt.Errorf("%w: nil value", ErrUnsupportedValue)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

func (e *encoder) poolKey(id URLID) PoolKey {
	if k, ok := e.keys[id]; ok {
		return k
	}
	url, ok := e.dict.urls.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("compact: interned property id %d does not resolve", id))
	}
	k := poolKey(id, url)
	if e.keys == nil {
		e.keys = make(map[URLID]PoolKey)
	}
	e.keys[id] = k
	return k
}

// encode encodes a value that has
// already passed internRefs.
func (e *encoder) encode(key PoolKey, v atom.Value) ValueRef {
	switch v := v.(type) {
	case atom.String:
		i, fresh := e.dict.pools.intern(key, string(v))
		if !fresh {
			e.deduplicated++
		}
		return PoolRef(key, i)
	case atom.Number:
		return NumberRef(float64(v))
	case atom.Bool:
		return BoolRef(bool(v))
	case atom.Ref:
		return ResourceRef(e.dict.urls.Intern(string(v)))
	case atom.List:
		items := make([]ValueRef, len(v))
		for i := range v {
			items[i] = e.encode(key, v[i])
		}
		return ArrayRef(items)
	default:
		return NullRef()
	}
}

// abbrevTable returns the codes of every
// well-known property used by a shape.
func (e *encoder) abbrevTable() map[URLID]string {
	out := make(map[URLID]string)
	for _, shape := range e.dict.shapes.shapes {
		for _, id := range shape {
			if code, ok := Abbreviate(e.dict.urls.Get(id)); ok {
				out[id] = code
			}
		}
	}
	return out
}

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
	"encoding/json"
	"fmt"
)

// FormatVersion is the version of the
// artifact format produced by this package.
const FormatVersion = 1

// Artifact is a compacted document.
//
// An Artifact is self-contained: its tables
// hold everything Decompress needs. Artifacts
// are never modified after Compact returns them.
type Artifact struct {
	// Version is the artifact format version.
	Version int `json:"version"`
	// AbbrevVersion is the version of the
	// abbreviation table used to produce
	// Abbrev and the pool keys.
	AbbrevVersion int `json:"abbrevVersion"`
	// URLs holds every interned subject
	// and property URL; the index is the URLID.
	URLs []string `json:"urlTable"`
	// Abbrev maps the ids of well-known
	// properties to their codes.
	Abbrev map[URLID]string `json:"propertyAbbrev"`
	// Pools holds the distinct string values
	// of each property.
	Pools map[PoolKey][]string `json:"stringPools"`
	// Shapes holds the distinct property
	// id sequences; the index is the ShapeID.
	Shapes [][]URLID `json:"shapeTable"`
	// Records holds one entry per resource
	// in document order.
	Records []Record `json:"records"`
	Stats   Stats    `json:"stats"`
}

// artifactBody is the encoding of an
// Artifact without its Stats; its size
// is the compressed size of the artifact.
type artifactBody struct {
	Version       int                  `json:"version"`
	AbbrevVersion int                  `json:"abbrevVersion"`
	URLs          []string             `json:"urlTable"`
	Abbrev        map[URLID]string     `json:"propertyAbbrev"`
	Pools         map[PoolKey][]string `json:"stringPools"`
	Shapes        [][]URLID            `json:"shapeTable"`
	Records       []Record             `json:"records"`
}

func (a *Artifact) encodeBody() ([]byte, error) {
	return json.Marshal(&artifactBody{
		Version:       a.Version,
		AbbrevVersion: a.AbbrevVersion,
		URLs:          a.URLs,
		Abbrev:        a.Abbrev,
		Pools:         a.Pools,
		Shapes:        a.Shapes,
		Records:       a.Records,
	})
}

// Encode returns the canonical JSON
// encoding of the artifact.
func (a *Artifact) Encode() ([]byte, error) {
	return json.Marshal(a)
}

// ParseArtifact decodes an artifact from
// its JSON encoding. The versions are checked
// before the rest of the artifact is decoded.
//
// ParseArtifact does not validate the tables;
// Decompress does.
func ParseArtifact(buf []byte) (*Artifact, error) {
	var hdr struct {
		Version       int `json:"version"`
		AbbrevVersion int `json:"abbrevVersion"`
	}
	if err := json.Unmarshal(buf, &hdr); err != nil {
		return nil, fmt.Errorf("compact.ParseArtifact: %w: %v", ErrCorruptTable, err)
	}
	if err := checkVersion(hdr.Version, hdr.AbbrevVersion); err != nil {
		return nil, fmt.Errorf("compact.ParseArtifact: %w", err)
	}
	a := new(Artifact)
	if err := json.Unmarshal(buf, a); err != nil {
		return nil, fmt.Errorf("compact.ParseArtifact: %w: %v", ErrCorruptTable, err)
	}
	return a, nil
}

func checkVersion(format, abbrev int) error {
	if format > FormatVersion {
		return fmt.Errorf("%w: artifact format %d, supported %d", ErrVersionMismatch, format, FormatVersion)
	}
	if abbrev > AbbrevVersion {
		return fmt.Errorf("%w: abbreviation table %d, supported %d", ErrVersionMismatch, abbrev, AbbrevVersion)
	}
	return nil
}

// Record is the encoded form of one resource.
type Record struct {
	SubjectID URLID      `json:"subjectId"`
	ShapeID   ShapeID    `json:"shapeId"`
	Values    []ValueRef `json:"values"`
}

// RefKind is the kind of a ValueRef.
type RefKind uint8

const (
	RefNull RefKind = iota
	RefPool
	RefNumber
	RefBool
	RefArray
	RefResource
)

func (k RefKind) String() string {
	switch k {
	case RefNull:
		return "null"
	case RefPool:
		return "pool"
	case RefNumber:
		return "number"
	case RefBool:
		return "bool"
	case RefArray:
		return "array"
	case RefResource:
		return "resource"
	default:
		return fmt.Sprintf("RefKind(%d)", uint8(k))
	}
}

// ValueRef is the encoded form of one value.
// Only the fields belonging to Kind are
// meaningful; the zero ValueRef is null.
type ValueRef struct {
	Kind RefKind
	// Pool and Index locate a string
	// in a categorical pool (RefPool).
	Pool  PoolKey
	Index int
	// Num is an inline number (RefNumber).
	Num float64
	// Bool is a boolean flag (RefBool).
	Bool bool
	// ID is the subject of a referenced
	// resource (RefResource).
	ID URLID
	// Items are the elements of an array (RefArray).
	Items []ValueRef
}

// PoolRef returns a reference to the
// string at index i of pool key.
func PoolRef(key PoolKey, i int) ValueRef {
	return ValueRef{Kind: RefPool, Pool: key, Index: i}
}

// NumberRef returns an inline number.
func NumberRef(f float64) ValueRef { return ValueRef{Kind: RefNumber, Num: f} }

// BoolRef returns a boolean flag.
func BoolRef(b bool) ValueRef { return ValueRef{Kind: RefBool, Bool: b} }

// ArrayRef returns an array of items.
func ArrayRef(items []ValueRef) ValueRef { return ValueRef{Kind: RefArray, Items: items} }

// ResourceRef returns a reference to
// the resource with subject id.
func ResourceRef(id URLID) ValueRef { return ValueRef{Kind: RefResource, ID: id} }

// NullRef returns the null value.
func NullRef() ValueRef { return ValueRef{} }

type (
	poolJSON struct {
		Pool  PoolKey `json:"pool"`
		Index int     `json:"idx"`
	}
	numJSON struct {
		Num float64 `json:"num"`
	}
	boolJSON struct {
		Bool bool `json:"bool"`
	}
	arrJSON struct {
		Arr []ValueRef `json:"arr"`
	}
	refJSON struct {
		Ref URLID `json:"ref"`
	}
)

// MarshalJSON implements json.Marshaler.
func (v ValueRef) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case RefNull:
		return []byte("null"), nil
	case RefPool:
		return json.Marshal(poolJSON{v.Pool, v.Index})
	case RefNumber:
		return json.Marshal(numJSON{v.Num})
	case RefBool:
		return json.Marshal(boolJSON{v.Bool})
	case RefArray:
		items := v.Items
		if items == nil {
			items = []ValueRef{}
		}
		return json.Marshal(arrJSON{items})
	case RefResource:
		return json.Marshal(refJSON{v.ID})
	default:
		return nil, fmt.Errorf("compact: cannot encode value of kind %s", v.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *ValueRef) UnmarshalJSON(buf []byte) error {
	if string(buf) == "null" {
		*v = ValueRef{}
		return nil
	}
	var raw struct {
		Pool  *PoolKey    `json:"pool"`
		Index *int        `json:"idx"`
		Num   *float64    `json:"num"`
		Bool  *bool       `json:"bool"`
		Arr   *[]ValueRef `json:"arr"`
		Ref   *URLID      `json:"ref"`
	}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}
	set := 0
	if raw.Pool != nil || raw.Index != nil {
		if raw.Pool == nil || raw.Index == nil {
			return fmt.Errorf("%w: pool reference %s needs both pool and idx", ErrCorruptTable, buf)
		}
		*v = PoolRef(*raw.Pool, *raw.Index)
		set++
	}
	if raw.Num != nil {
		*v = NumberRef(*raw.Num)
		set++
	}
	if raw.Bool != nil {
		*v = BoolRef(*raw.Bool)
		set++
	}
	if raw.Arr != nil {
		*v = ArrayRef(*raw.Arr)
		set++
	}
	if raw.Ref != nil {
		*v = ResourceRef(*raw.Ref)
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: value %s is not exactly one kind", ErrCorruptTable, buf)
	}
	return nil
}

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

package atom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"sigs.k8s.io/yaml"
)

// SubjectKey is the object member that
// holds the subject of a resource, and the
// only member of a reference object.
const SubjectKey = "@id"

// ErrNestedObject is returned by the parsers
// when a property value is an object other
// than a {"@id": ...} reference.
var ErrNestedObject = errors.New("nested object is not a reference")

// ParseJSON decodes a document from src.
//
// The input is either an array of resource
// objects or a single resource object.
// Each resource keeps its members in the
// order in which they appear in the text.
func ParseJSON(src io.Reader) (*Document, error) {
	d := json.NewDecoder(src)
	d.UseNumber()
	tok, err := d.Token()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	doc := new(Document)
	switch tok {
	case json.Delim('['):
		for i := 0; ; i++ {
			tok, err := d.Token()
			if err != nil {
				return nil, eof(err)
			}
			if tok == json.Delim(']') {
				break
			}
			if tok != json.Delim('{') {
				return nil, fmt.Errorf("atom.ParseJSON: resource %d: expected an object; found %v", i, tok)
			}
			r, err := jsonResource(d)
			if err != nil {
				return nil, fmt.Errorf("atom.ParseJSON: resource %d: %w", i, err)
			}
			doc.Resources = append(doc.Resources, r)
		}
	case json.Delim('{'):
		r, err := jsonResource(d)
		if err != nil {
			return nil, fmt.Errorf("atom.ParseJSON: %w", err)
		}
		doc.Resources = append(doc.Resources, r)
	default:
		return nil, fmt.Errorf("atom.ParseJSON: expected an array or object; found %v", tok)
	}
	if _, err := d.Token(); err != io.EOF {
		return nil, fmt.Errorf("atom.ParseJSON: trailing data after document")
	}
	return doc, nil
}

// ParseYAML decodes a document from YAML text.
//
// The YAML is converted to JSON first, which
// sorts the members of every mapping; YAML
// input therefore does not keep the property
// order of the source text.
func ParseYAML(buf []byte) (*Document, error) {
	js, err := yaml.YAMLToJSON(buf)
	if err != nil {
		return nil, fmt.Errorf("atom.ParseYAML: %w", err)
	}
	return ParseJSON(bytes.NewReader(js))
}

func eof(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// jsonResource decodes the members of an object
// whose opening brace has already been consumed.
func jsonResource(d *json.Decoder) (Resource, error) {
	var r Resource
	seenSubject := false
	for {
		tok, err := d.Token()
		if err != nil {
			return r, eof(err)
		}
		if tok == json.Delim('}') {
			return r, nil
		}
		name, ok := tok.(string)
		if !ok {
			return r, fmt.Errorf("expected a member name; found %v", tok)
		}
		body, err := d.Token()
		if err != nil {
			return r, eof(err)
		}
		if name == SubjectKey && !seenSubject {
			s, ok := body.(string)
			if !ok {
				return r, fmt.Errorf("%q must be a string; found %v", SubjectKey, body)
			}
			r.Subject = s
			seenSubject = true
			continue
		}
		v, err := fromJSON(body, d)
		if err != nil {
			return r, fmt.Errorf("property %q: %w", name, err)
		}
		r.Props = append(r.Props, Property{Key: name, Value: v})
	}
}

// jsonRef decodes a {"@id": ...} object
// whose opening brace has been consumed.
func jsonRef(d *json.Decoder) (Value, error) {
	tok, err := d.Token()
	if err != nil {
		return nil, eof(err)
	}
	if tok != SubjectKey {
		return nil, ErrNestedObject
	}
	tok, err = d.Token()
	if err != nil {
		return nil, eof(err)
	}
	s, ok := tok.(string)
	if !ok {
		return nil, fmt.Errorf("reference %q must be a string; found %v", SubjectKey, tok)
	}
	tok, err = d.Token()
	if err != nil {
		return nil, eof(err)
	}
	if tok != json.Delim('}') {
		return nil, ErrNestedObject
	}
	return Ref(s), nil
}

func jsonList(d *json.Decoder) (Value, error) {
	out := List{}
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, eof(err)
		}
		if tok == json.Delim(']') {
			return out, nil
		}
		v, err := fromJSON(tok, d)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", len(out), err)
		}
		out = append(out, v)
	}
}

func fromJSON(tok json.Token, d *json.Decoder) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		if t == json.Delim('{') {
			return jsonRef(d)
		}
		if t == json.Delim('[') {
			return jsonList(d)
		}
		return nil, fmt.Errorf("unexpected delim %v", t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q out of range", t.String())
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", t)
	}
}

// AppendJSON appends the canonical JSON
// encoding of d to dst.
//
// The canonical encoding is compact, always
// an array, writes "@id" before the properties
// of each resource, and writes numbers in their
// shortest round-trip form. Values that have no
// JSON form (nil values, NaN and infinities)
// are written as null.
func (d *Document) AppendJSON(dst []byte) []byte {
	dst = append(dst, '[')
	for i := range d.Resources {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = d.Resources[i].AppendJSON(dst)
	}
	return append(dst, ']')
}

// AppendJSON appends the canonical JSON
// encoding of r to dst.
func (r *Resource) AppendJSON(dst []byte) []byte {
	dst = append(dst, '{')
	dst = appendString(dst, SubjectKey)
	dst = append(dst, ':')
	dst = appendString(dst, r.Subject)
	for i := range r.Props {
		dst = append(dst, ',')
		dst = appendString(dst, r.Props[i].Key)
		dst = append(dst, ':')
		dst = AppendValue(dst, r.Props[i].Value)
	}
	return append(dst, '}')
}

// AppendValue appends the canonical JSON
// encoding of v to dst.
func AppendValue(dst []byte, v Value) []byte {
	switch v := v.(type) {
	case String:
		return appendString(dst, string(v))
	case Number:
		if !v.Finite() {
			return append(dst, "null"...)
		}
		return strconv.AppendFloat(dst, float64(v), 'g', -1, 64)
	case Bool:
		return strconv.AppendBool(dst, bool(v))
	case List:
		dst = append(dst, '[')
		for i := range v {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendValue(dst, v[i])
		}
		return append(dst, ']')
	case Ref:
		dst = append(dst, '{')
		dst = appendString(dst, SubjectKey)
		dst = append(dst, ':')
		dst = appendString(dst, string(v))
		return append(dst, '}')
	default:
		return append(dst, "null"...)
	}
}

// EncodedSize returns the length of the
// canonical JSON encoding of d.
func (d *Document) EncodedSize() int {
	return len(d.AppendJSON(nil))
}

// MarshalJSON implements json.Marshaler
// using the canonical encoding.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.AppendJSON(nil), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(buf []byte) error {
	doc, err := ParseJSON(bytes.NewReader(buf))
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

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

import "errors"

var (
	// ErrInvalidInput is returned by Compact
	// when the source document is malformed:
	// a resource without a subject, an empty
	// property key, a property key repeated
	// within one resource, or a subject or key
	// that is not valid UTF-8.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedValue is returned by Compact
	// for a value outside the supported set
	// (a nil Value, a non-finite Number, or a
	// String or Ref that is not valid UTF-8).
	ErrUnsupportedValue = errors.New("unsupported value type")

	// ErrCorruptTable is returned when an artifact
	// refers to an id outside of its tables or
	// its tables are otherwise inconsistent.
	ErrCorruptTable = errors.New("corrupt table")

	// ErrShapeMismatch is returned when the number
	// of values in a record differs from the number
	// of properties in its shape.
	ErrShapeMismatch = errors.New("record does not match shape")

	// ErrVersionMismatch is returned for an artifact
	// produced by a newer format or abbreviation
	// table than this package supports.
	ErrVersionMismatch = errors.New("version mismatch")
)

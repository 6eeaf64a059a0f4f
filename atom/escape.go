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
	"unicode/utf8"
)

// safe[b] is true when the ASCII byte b
// can appear in a JSON string unescaped:
// everything except control characters,
// the double quote, and the backslash.
var safe [utf8.RuneSelf]bool

func init() {
	for b := ' '; b < utf8.RuneSelf; b++ {
		safe[b] = b != '"' && b != '\\'
	}
}

const hexdigits = "0123456789abcdef"

// appendString appends the quoted JSON
// representation of str to dst.
//
// The escaping matches encoding/json except
// that <, > and & are left alone. Invalid
// UTF-8 is replaced with U+FFFD, and U+2028
// and U+2029 are always escaped.
func appendString(dst []byte, str string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(str); {
		b := str[i]
		if b < utf8.RuneSelf {
			if safe[b] {
				i++
				continue
			}
			dst = append(dst, str[start:i]...)
			switch b {
			case '\\', '"':
				dst = append(dst, '\\', b)
			case '\n':
				dst = append(dst, '\\', 'n')
			case '\r':
				dst = append(dst, '\\', 'r')
			case '\t':
				dst = append(dst, '\\', 't')
			default:
				dst = append(dst, '\\', 'u', '0', '0', hexdigits[b>>4], hexdigits[b&0xf])
			}
			i++
			start = i
			continue
		}
		c, size := utf8.DecodeRuneInString(str[i:])
		if c == utf8.RuneError && size == 1 {
			dst = append(dst, str[start:i]...)
			dst = append(dst, `\ufffd`...)
			i += size
			start = i
			continue
		}
		if c == '\u2028' || c == '\u2029' {
			dst = append(dst, str[start:i]...)
			dst = append(dst, '\\', 'u', '2', '0', '2', hexdigits[c&0xf])
			i += size
			start = i
			continue
		}
		i += size
	}
	dst = append(dst, str[start:]...)
	return append(dst, '"')
}

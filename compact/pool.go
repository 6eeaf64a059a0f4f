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
	"strconv"

	"golang.org/x/exp/slices"
)

// PoolKey names a categorical string pool.
// It is the abbreviation code of the property
// when it has one and the decimal URLID of
// the property otherwise.
type PoolKey string

func poolKey(id URLID, url string) PoolKey {
	if code, ok := Abbreviate(url); ok {
		return PoolKey(code)
	}
	return PoolKey(strconv.FormatUint(uint64(id), 10))
}

// pool holds the distinct string values
// seen under one property, in order of
// first occurrence.
type pool struct {
	values []string
	index  map[string]int
}

func (p *pool) intern(v string) (int, bool) {
	if i, ok := p.index[v]; ok {
		return i, false
	}
	i := len(p.values)
	p.values = append(p.values, v)
	p.index[v] = i
	return i, true
}

// poolSet is the collection of categorical
// pools. Values are deduplicated within a
// pool but never across pools.
type poolSet struct {
	pools map[PoolKey]*pool
	// number of distinct values across all pools
	distinct int
}

// intern returns the index of v in the pool
// for key and whether v was newly added.
func (s *poolSet) intern(key PoolKey, v string) (int, bool) {
	if s.pools == nil {
		s.pools = make(map[PoolKey]*pool)
	}
	p := s.pools[key]
	if p == nil {
		p = &pool{index: make(map[string]int)}
		s.pools[key] = p
	}
	i, fresh := p.intern(v)
	if fresh {
		s.distinct++
	}
	return i, fresh
}

func (s *poolSet) cloneInto(o *poolSet) {
	o.pools = make(map[PoolKey]*pool, len(s.pools))
	for k, p := range s.pools {
		np := &pool{
			values: slices.Clone(p.values),
			index:  make(map[string]int, len(p.values)),
		}
		for i, v := range np.values {
			np.index[v] = i
		}
		o.pools[k] = np
	}
	o.distinct = s.distinct
}

// export returns a copy of every pool.
func (s *poolSet) export() map[PoolKey][]string {
	out := make(map[PoolKey][]string, len(s.pools))
	for k, p := range s.pools {
		out[k] = slices.Clone(p.values)
	}
	return out
}

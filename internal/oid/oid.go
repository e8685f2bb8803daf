// Copyright 2024 SnmpFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package oid is the addressing model shared by every other snmpfs package:
// object identifier paths, node kinds and filesystem handles.
package oid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxLen bounds the number of arcs in a Path (SNMP limits OIDs to 128 arcs).
const MaxLen = 128

// Path is an object identifier as a sequence of arcs.
// Paths are values: every method that derives a new path returns a copy.
type Path []uint32

// Parse parses a dotted OID ("1.3.6.1" or ".1.3.6.1"). The empty string
// and "." parse to the empty path.
func Parse(s string) (Path, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	if len(parts) > MaxLen {
		return nil, fmt.Errorf("oid %q has %d arcs, max %d", s, len(parts), MaxLen)
	}
	p := make(Path, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("oid %q: bad arc %q: %w", s, part, err)
		}
		p[i] = uint32(v)
	}
	return p, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the path in dotted form without a leading dot.
func (p Path) String() string {
	var b strings.Builder
	for i, arc := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.FormatUint(uint64(arc), 10))
	}
	return b.String()
}

// Compare orders paths lexicographically on the shared prefix, then by
// length. This is the agent's GetNext order.
func (p Path) Compare(q Path) int {
	n := min(len(p), len(q))
	for i := 0; i < n; i++ {
		switch {
		case p[i] < q[i]:
			return -1
		case p[i] > q[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(q):
		return -1
	case len(p) > len(q):
		return 1
	}
	return 0
}

// Equal reports whether p and q name the same object.
func (p Path) Equal(q Path) bool {
	return p.Compare(q) == 0
}

// Clone returns an independent copy of p.
func (p Path) Clone() Path {
	c := make(Path, len(p))
	copy(c, p)
	return c
}

// Append returns a new path with sub appended.
func (p Path) Append(sub uint32) Path {
	c := make(Path, len(p), len(p)+1)
	copy(c, p)
	return append(c, sub)
}

// Truncate returns a copy of the first n arcs of p.
func (p Path) Truncate(n int) Path {
	if n > len(p) {
		n = len(p)
	}
	return p[:n].Clone()
}

// Parent returns p without its last arc. The parent of the empty path is
// the empty path.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p.Truncate(len(p) - 1)
}

// Last returns the final arc of p, or false for the empty path.
func (p Path) Last() (uint32, bool) {
	if len(p) == 0 {
		return 0, false
	}
	return p[len(p)-1], true
}

// HasPrefix reports whether prefix is an ancestor-or-self of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// IsDescendantOf reports whether p lies strictly below ancestor.
func (p Path) IsDescendantOf(ancestor Path) bool {
	return len(p) > len(ancestor) && p.HasPrefix(ancestor)
}

// IsChildOf reports whether p is exactly one arc below parent.
func (p Path) IsChildOf(parent Path) bool {
	return len(p) == len(parent)+1 && p.HasPrefix(parent)
}

// Next returns the hypothetical next sibling of p: the last arc
// incremented. An arc at math.MaxUint32 carries into its parent, which
// yields the first address after p's parent subtree. ok is false when no
// such address exists (every arc is at the maximum, or p is empty).
func (p Path) Next() (next Path, ok bool) {
	c := p.Clone()
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] < math.MaxUint32 {
			c[i]++
			return c[:i+1], true
		}
	}
	return nil, false
}

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

// Package digest packs a handle into a fixed-size token and back.
//
// Only the part of the path below the export root is stored. Token layout,
// all integers big-endian:
//
//	bytes 0-1   header: kind:2 | count:6 | nShort:4 | nWide:4
//	nShort      index bytes of segments stored on 2 bytes, ascending
//	nWide       index bytes of segments stored on 4 bytes, ascending
//	count       segment values in path order, 1, 2 or 4 bytes each
//	rest        zero
//
// The layout is shared by every server exporting the same root.
package digest

import (
	"encoding/hex"
	"fmt"

	"snmpfs/internal/common"
	"snmpfs/internal/oid"
)

// TokenSize is the wire size of a token, the NFSv3 file handle ceiling.
const TokenSize = 64

const (
	headerSize = 2
	maxCount   = 1<<6 - 1
	maxIndexes = 1<<4 - 1
)

// Token is a compacted handle.
type Token [TokenSize]byte

func (t Token) String() string {
	return hex.EncodeToString(t[:])
}

// FromBytes copies a wire handle into a Token. Shorter input is zero
// padded; longer input is rejected.
func FromBytes(b []byte) (Token, error) {
	var t Token
	if len(b) > TokenSize {
		return t, fmt.Errorf("%w: handle of %d bytes exceeds %d", common.ErrInvalidArgument, len(b), TokenSize)
	}
	copy(t[:], b)
	return t, nil
}

const (
	tagRoot     = 1
	tagInterior = 2
	tagLeaf     = 3
)

func kindTag(k oid.Kind) (byte, bool) {
	switch k {
	case oid.KindRoot:
		return tagRoot, true
	case oid.KindInterior:
		return tagInterior, true
	case oid.KindLeaf:
		return tagLeaf, true
	}
	return 0, false
}

func tagKind(tag byte) (oid.Kind, bool) {
	switch tag {
	case tagRoot:
		return oid.KindRoot, true
	case tagInterior:
		return oid.KindInterior, true
	case tagLeaf:
		return oid.KindLeaf, true
	}
	return oid.KindUndetermined, false
}

func width(v uint32) int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	}
	return 4
}

// Compact encodes h relative to root.
func Compact(h oid.Handle, root oid.Path) (Token, error) {
	var t Token

	tag, ok := kindTag(h.Kind)
	if !ok {
		return t, fmt.Errorf("%w: cannot compact %s handle", common.ErrInvalidArgument, h.Kind)
	}
	if !h.Path.HasPrefix(root) {
		return t, fmt.Errorf("%w: %s is outside export root %s", common.ErrInvalidArgument, h.Path, root)
	}
	rel := h.Path[len(root):]
	if (h.Kind == oid.KindRoot) != (len(rel) == 0) {
		return t, fmt.Errorf("%w: %s handle at relative depth %d", common.ErrInvalidArgument, h.Kind, len(rel))
	}

	var short, wide []byte
	for i, v := range rel {
		switch width(v) {
		case 2:
			short = append(short, byte(i))
		case 4:
			wide = append(wide, byte(i))
		}
	}
	if len(rel) > maxCount || len(short) > maxIndexes || len(wide) > maxIndexes {
		return t, fmt.Errorf("%w: %d segments (%d short, %d wide) do not fit the header",
			common.ErrBufferTooSmall, len(rel), len(short), len(wide))
	}

	w := newWriter(t[:])
	header := uint16(tag)<<14 | uint16(len(rel))<<8 | uint16(len(short))<<4 | uint16(len(wide))
	if err := w.put16(header); err != nil {
		return t, err
	}
	for _, idx := range short {
		if err := w.put8(idx); err != nil {
			return t, err
		}
	}
	for _, idx := range wide {
		if err := w.put8(idx); err != nil {
			return t, err
		}
	}
	for _, v := range rel {
		var err error
		switch width(v) {
		case 1:
			err = w.put8(byte(v))
		case 2:
			err = w.put16(uint16(v))
		default:
			err = w.put32(v)
		}
		if err != nil {
			return Token{}, err
		}
	}
	return t, nil
}

// Expand decodes a token produced by Compact with the same root.
func Expand(t Token, root oid.Path) (oid.Handle, error) {
	r := newReader(t[:])

	header, err := r.get16()
	if err != nil {
		return oid.Handle{}, err
	}
	kind, ok := tagKind(byte(header >> 14))
	if !ok {
		return oid.Handle{}, fmt.Errorf("%w: bad kind tag %d", common.ErrInvalidArgument, header>>14)
	}
	count := int(header>>8) & maxCount
	nShort := int(header>>4) & maxIndexes
	nWide := int(header) & maxIndexes

	if (kind == oid.KindRoot) != (count == 0) {
		return oid.Handle{}, fmt.Errorf("%w: %s token with %d segments", common.ErrInvalidArgument, kind, count)
	}
	if len(root)+count > oid.MaxLen {
		return oid.Handle{}, fmt.Errorf("%w: path of %d arcs", common.ErrInvalidArgument, len(root)+count)
	}

	widths := make([]int, count)
	for i := range widths {
		widths[i] = 1
	}
	if err := readIndexes(r, nShort, 2, widths); err != nil {
		return oid.Handle{}, err
	}
	if err := readIndexes(r, nWide, 4, widths); err != nil {
		return oid.Handle{}, err
	}

	p := make(oid.Path, len(root), len(root)+count)
	copy(p, root)
	for _, w := range widths {
		var v uint32
		switch w {
		case 1:
			b, err := r.get8()
			if err != nil {
				return oid.Handle{}, err
			}
			v = uint32(b)
		case 2:
			s, err := r.get16()
			if err != nil {
				return oid.Handle{}, err
			}
			v = uint32(s)
		default:
			v, err = r.get32()
			if err != nil {
				return oid.Handle{}, err
			}
		}
		// Canonical encodings only: each value uses its minimal width.
		if width(v) != w {
			return oid.Handle{}, fmt.Errorf("%w: non-canonical segment %d on %d bytes", common.ErrInvalidArgument, v, w)
		}
		p = append(p, v)
	}
	if !r.restZero() {
		return oid.Handle{}, fmt.Errorf("%w: trailing bytes in token", common.ErrInvalidArgument)
	}
	return oid.Handle{Kind: kind, Path: p}, nil
}

// readIndexes reads n ascending segment indexes and marks them with w.
func readIndexes(r *reader, n, w int, widths []int) error {
	prev := -1
	for i := 0; i < n; i++ {
		b, err := r.get8()
		if err != nil {
			return err
		}
		idx := int(b)
		if idx <= prev || idx >= len(widths) || widths[idx] != 1 {
			return fmt.Errorf("%w: bad segment index %d", common.ErrInvalidArgument, idx)
		}
		widths[idx] = w
		prev = idx
	}
	return nil
}

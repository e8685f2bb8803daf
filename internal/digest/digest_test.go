package digest

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snmpfs/internal/common"
	"snmpfs/internal/oid"
)

var mib2 = oid.MustParse("1.3.6.1.2.1")

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		handle oid.Handle
		root   oid.Path
	}{
		{"root", oid.NewHandle(oid.KindRoot, mib2), mib2},
		{"empty root", oid.RootHandle(), oid.Path{}},
		{"interior", oid.NewHandle(oid.KindInterior, oid.MustParse("1.3.6.1.2.1.2.2")), mib2},
		{"leaf", oid.NewHandle(oid.KindLeaf, oid.MustParse("1.3.6.1.2.1.1.1.0")), mib2},
		{"short values", oid.NewHandle(oid.KindLeaf, mib2.Append(256).Append(65535).Append(255)), mib2},
		{"wide values", oid.NewHandle(oid.KindLeaf, mib2.Append(65536).Append(math.MaxUint32)), mib2},
		{"whole tree root", oid.NewHandle(oid.KindLeaf, oid.MustParse("1.3.6.1.4.1.2021.10.1.3.1")), oid.Path{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tok, err := Compact(tt.handle, tt.root)
			require.NoError(t, err)

			got, err := Expand(tok, tt.root)
			require.NoError(t, err)
			assert.True(t, tt.handle.Equal(got), "got %s want %s", got, tt.handle)
		})
	}
}

// Forty relative segments, three of them above the two-byte range.
func TestDeepPathWithWideSegments(t *testing.T) {
	t.Parallel()

	p := mib2.Clone()
	for i := 0; i < 40; i++ {
		v := uint32(i % 200)
		switch i {
		case 7:
			v = 70000
		case 21:
			v = 1 << 24
		case 39:
			v = math.MaxUint32
		}
		p = p.Append(v)
	}
	h := oid.NewHandle(oid.KindLeaf, p)

	tok, err := Compact(h, mib2)
	require.NoError(t, err)
	assert.Equal(t, byte(3), tok[1]&0x0F, "three wide indexes in header")
	assert.Equal(t, []byte{7, 21, 39}, tok[2:5])

	got, err := Expand(tok, mib2)
	require.NoError(t, err)
	assert.True(t, h.Equal(got))
}

func TestCompactOverflow(t *testing.T) {
	t.Parallel()

	deep := func(n int, v uint32) oid.Handle {
		p := oid.Path{}
		for i := 0; i < n; i++ {
			p = p.Append(v)
		}
		return oid.NewHandle(oid.KindLeaf, p)
	}

	tests := []struct {
		name string
		h    oid.Handle
	}{
		{"too many segments for the count field", deep(64, 1)},
		{"too many short indexes", deep(16, 300)},
		{"too many wide indexes", deep(16, 70000)},
		{"values overrun the token", deep(15, 70000)},
		{"narrow values overrun the token", deep(63, 1)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tok, err := Compact(tt.h, oid.Path{})
			assert.ErrorIs(t, err, common.ErrBufferTooSmall)
			assert.Equal(t, Token{}, tok, "no partial token on overflow")
		})
	}
}

func TestCompactRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		h    oid.Handle
	}{
		{"undetermined kind", oid.NewHandle(oid.KindUndetermined, mib2.Append(1))},
		{"outside root", oid.NewHandle(oid.KindLeaf, oid.MustParse("1.3.6.1.4.1"))},
		{"root kind below root", oid.NewHandle(oid.KindRoot, mib2.Append(1))},
		{"leaf at root", oid.NewHandle(oid.KindLeaf, mib2)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Compact(tt.h, mib2)
			assert.ErrorIs(t, err, common.ErrInvalidArgument)
		})
	}
}

func TestExpandRejectsMalformed(t *testing.T) {
	t.Parallel()

	valid, err := Compact(oid.NewHandle(oid.KindLeaf, mib2.Append(1).Append(300)), mib2)
	require.NoError(t, err)

	mutate := func(f func(*Token)) Token {
		tok := valid
		f(&tok)
		return tok
	}

	tests := []struct {
		name string
		tok  Token
	}{
		{"zero token", Token{}},
		{"zero kind tag", mutate(func(t *Token) { t[0] &^= 0xC0 })},
		{"root with segments", mutate(func(t *Token) { t[0] = t[0]&^0xC0 | tagRoot<<6 })},
		{"index out of range", mutate(func(t *Token) { t[2] = 9 })},
		{"trailing garbage", mutate(func(t *Token) { t[TokenSize-1] = 1 })},
		{"non-canonical width", mutate(func(t *Token) { t[4], t[5] = 0, 1 })},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Expand(tt.tok, mib2)
			assert.ErrorIs(t, err, common.ErrInvalidArgument)
		})
	}
}

func TestFromBytes(t *testing.T) {
	t.Parallel()

	tok, err := Compact(oid.NewHandle(oid.KindInterior, mib2.Append(2)), mib2)
	require.NoError(t, err)

	back, err := FromBytes(tok[:3])
	require.NoError(t, err)
	assert.Equal(t, tok, back)

	_, err = FromBytes(make([]byte, TokenSize+1))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

// Random handles either round-trip exactly or fail with ErrBufferTooSmall.
func TestRandomHandles(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	kinds := []oid.Kind{oid.KindInterior, oid.KindLeaf}

	for i := 0; i < 2000; i++ {
		n := 1 + rng.Intn(70)
		p := mib2.Clone()
		for j := 0; j < n; j++ {
			var v uint32
			switch rng.Intn(10) {
			case 0:
				v = rng.Uint32()
			case 1, 2:
				v = uint32(rng.Intn(1 << 16))
			default:
				v = uint32(rng.Intn(256))
			}
			p = p.Append(v)
		}
		h := oid.NewHandle(kinds[rng.Intn(len(kinds))], p)

		tok, err := Compact(h, mib2)
		if err != nil {
			require.ErrorIs(t, err, common.ErrBufferTooSmall)
			continue
		}
		got, err := Expand(tok, mib2)
		require.NoError(t, err)
		require.True(t, h.Equal(got), "round trip of %s", h)
	}
}

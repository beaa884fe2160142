package cvec_test

import (
	"testing"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/cvec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromOwned_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		len  int
		cap  int
	}{
		{"full", 4, 4},
		{"spare capacity", 3, 16},
		{"empty with capacity", 0, 8},
		{"single", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]uint32, tt.len, tt.cap)
			for i := range buf {
				buf[i] = uint32(i*7 + 1)
			}
			want := append([]uint32(nil), buf...)

			v := cvec.FromOwned(&buf)
			assert.Nil(t, buf, "FromOwned must consume the source slice")
			assert.Equal(t, uintptr(tt.len), v.Len)
			assert.Equal(t, uintptr(tt.cap), v.Cap)
			assert.False(t, v.IsEmpty())

			got := cvec.IntoOwned(v)
			assert.Equal(t, tt.len, len(got))
			assert.Equal(t, tt.cap, cap(got))
			if tt.len > 0 {
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestFromOwned_ZeroCapacityIsEmpty(t *testing.T) {
	var nilBuf []byte
	assert.True(t, cvec.FromOwned(&nilBuf).IsEmpty())

	zero := make([]byte, 0)
	assert.True(t, cvec.FromOwned(&zero).IsEmpty())

	assert.True(t, cvec.FromOwned[byte](nil).IsEmpty())
}

func TestEmpty_IntoOwnedIsNoop(t *testing.T) {
	before := cvec.Snapshot()

	v := cvec.Empty[byte]()
	assert.True(t, v.IsEmpty())
	assert.Nil(t, cvec.IntoOwned(v))
	v.Release()
	cvec.ReleaseNested(cvec.Empty[cvec.Vec[byte]]())

	assert.Equal(t, cvec.Stats{}, cvec.Snapshot().Sub(before))
}

func TestView_BoundedByLen(t *testing.T) {
	buf := make([]byte, 3, 10)
	copy(buf, "abc")
	v := cvec.FromOwned(&buf)
	defer v.Release()

	view := v.View()
	assert.Equal(t, []byte("abc"), view)
	assert.Equal(t, 3, cap(view))
}

func TestNested_RoundTrip(t *testing.T) {
	before := cvec.Snapshot()

	table := [][]byte{[]byte("print"), []byte("x"), make([]byte, 0, 4), nil}
	v := cvec.FromOwnedNested(&table)
	assert.Nil(t, table)
	require.Equal(t, uintptr(4), v.Len)

	inner := v.View()
	assert.Equal(t, "print", string(inner[0].View()))
	assert.Equal(t, "x", string(inner[1].View()))
	assert.Equal(t, uintptr(4), inner[2].Cap)
	assert.True(t, inner[3].IsEmpty())

	if cvec.Tracking {
		mid := cvec.Snapshot().Sub(before)
		assert.Equal(t, 4, mid.Live, "outer plus three non-empty inner blocks")
	}

	cvec.ReleaseNested(v)
	after := cvec.Snapshot().Sub(before)
	assert.Equal(t, 0, after.Live)
	assert.Equal(t, after.Acquired, after.Released)
}

func TestNested_EmptyTable(t *testing.T) {
	var table [][]byte
	v := cvec.FromOwnedNested(&table)
	assert.True(t, v.IsEmpty())

	table = [][]byte{}
	assert.True(t, cvec.FromOwnedNested(&table).IsEmpty())
}

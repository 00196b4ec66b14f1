package s3

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/hctorder/internal/blob/core"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("put head list delete under prefix", func(t *testing.T) {
		s := NewMockForTests("lab4/")
		info, err := s.Put(ctx, "001/001_20261014_094530.csv", strings.NewReader("hello"), core.PutOptions{ContentType: "text/csv"})
		require.NoError(t, err)
		assert.Equal(t, "001/001_20261014_094530.csv", info.Key)
		assert.Equal(t, "s3://mock-bucket/lab4/001/001_20261014_094530.csv", info.Location)
		assert.Equal(t, "etag123", info.ETag)

		_, err = s.Put(ctx, "002/other.csv", strings.NewReader("x"), core.PutOptions{})
		require.NoError(t, err)

		list, err := s.List(ctx, "001/")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "001/001_20261014_094530.csv", list[0].Key)

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		ok, err := s.Delete(ctx, "001/001_20261014_094530.csv")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.Delete(ctx, "001/001_20261014_094530.csv")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put is create only", func(t *testing.T) {
		s := NewMockForTests("")
		_, err := s.Put(ctx, "a.csv", strings.NewReader("one"), core.PutOptions{})
		require.NoError(t, err)
		_, err = s.Put(ctx, "a.csv", strings.NewReader("two"), core.PutOptions{})
		assert.ErrorIs(t, err, core.ErrExists)
	})

	t.Run("missing key", func(t *testing.T) {
		s := NewMockForTests("")
		_, err := s.Head(ctx, "missing.csv")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, _, err = s.Get(ctx, "missing.csv")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := NewMockForTests("").Put(ctx, " ", strings.NewReader("x"), core.PutOptions{})
		assert.Error(t, err)
	})

	t.Run("bucket required", func(t *testing.T) {
		_, err := New(ctx, Config{})
		assert.ErrorContains(t, err, "bucket required")
	})

	assert.Equal(t, core.DriverS3, NewMockForTests("").Driver())
}

func TestDecodeChunkedLite(t *testing.T) {
	dec, ok := decodeChunkedLite([]byte("3\r\nabc\r\n0\r\n"))
	require.True(t, ok)
	assert.Equal(t, "abc", string(dec))

	dec, ok = decodeChunkedLite([]byte("3\r\nabc\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, "abc", string(dec))

	_, ok = decodeChunkedLite([]byte("5\r\nabc\r\n0\r\n"))
	assert.False(t, ok)

	_, err := parseHex("zz")
	assert.Error(t, err)
}

func TestMockRoundTripperUnsupported(t *testing.T) {
	rt := &mockRoundTripper{state: make(map[string]mockObj)}
	req, err := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

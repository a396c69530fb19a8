package cache

import (
	"context"
	"image/png"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), Options{Addr: mr.Addr(), TTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "rmbg:abc:briaai/RMBG-1.4:c0:s0", Key("abc", "briaai/RMBG-1.4", png.DefaultCompression, false))

	base := Key("abc", "m1", png.DefaultCompression, false)
	assert.NotEqual(t, base, Key("abc", "m2", png.DefaultCompression, false))
	assert.NotEqual(t, base, Key("abc", "m1", png.BestCompression, false))
	assert.NotEqual(t, base, Key("abc", "m1", png.DefaultCompression, true))
}

func TestCache_GetSet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := Key("d41d8cd98f00b204e9800998ecf8427e", "m", png.DefaultCompression, false)

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, key, []byte{0x89, 'P', 'N', 'G'}))

	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got)
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestCache_Expires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "rmbg:x:m", []byte("data")))
	mr.FastForward(2 * time.Hour)

	got, err := c.Get(ctx, "rmbg:x:m")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_ServerDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), "rmbg:x:m")
	assert.Error(t, err)
	assert.Error(t, c.Set(context.Background(), "rmbg:x:m", []byte("data")))
	assert.Error(t, c.Ping(context.Background()))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err = New(ctx, Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

package rembg

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRemoveBGRemover(t *testing.T) {
	t.Parallel()

	_, err := NewRemoveBGRemover(RemoveBGConfig{}, nil)
	assert.Error(t, err)

	r, err := NewRemoveBGRemover(RemoveBGConfig{APIKey: "key"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRemoveBGEndpoint, r.endpoint)
}

func TestRemoveBGRemover_Remove(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "png", r.FormValue("format"))

		file, _, err := r.FormFile("image_file")
		require.NoError(t, err)
		defer func() {
			_ = file.Close()
		}()
		in, err := png.Decode(file)
		require.NoError(t, err)

		// 左半边前景，右半边背景
		b := in.Bounds()
		cut := image.NewNRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if x < b.Dx()/2 {
					cut.Set(x, y, in.At(x, y))
				}
			}
		}
		_, _ = w.Write(encodePNG(t, cut))
	}))
	defer server.Close()

	r, err := NewRemoveBGRemover(RemoveBGConfig{Endpoint: server.URL, APIKey: "secret"}, nil)
	require.NoError(t, err)

	src := solid(6, 2, color.NRGBA{G: 255, A: 255})
	out, err := r.Remove(context.Background(), src)
	require.NoError(t, err)

	got := out.(*image.NRGBA)
	require.Equal(t, src.Bounds(), got.Bounds())
	assert.Equal(t, uint8(255), got.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(0), got.NRGBAAt(5, 1).A)
	assert.Equal(t, uint8(255), got.NRGBAAt(5, 1).G)
}

func TestRemoveBGRemover_Unauthorized(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"title":"API Key invalid"}]}`))
	}))
	defer server.Close()

	r, err := NewRemoveBGRemover(RemoveBGConfig{Endpoint: server.URL, APIKey: "wrong"}, nil)
	require.NoError(t, err)

	_, err = r.Remove(context.Background(), solid(2, 2, color.NRGBA{A: 255}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestRemoveBGRemover_InjectedClient(t *testing.T) {
	t.Parallel()

	cutout := solid(4, 4, color.NRGBA{R: 9, A: 255})
	cli := &stubClient{resp: encodePNG(t, cutout)}

	r, err := NewRemoveBGRemover(RemoveBGConfig{APIKey: "secret"}, cli)
	require.NoError(t, err)

	out, err := r.Remove(context.Background(), solid(4, 4, color.NRGBA{R: 9, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())

	require.NotNil(t, cli.got)
	assert.Equal(t, DefaultRemoveBGEndpoint, cli.got.RequestURI)
	assert.Equal(t, "secret", cli.got.Header["X-Api-Key"])
	assert.Contains(t, cli.got.Header["Content-Type"], "multipart/form-data")
}

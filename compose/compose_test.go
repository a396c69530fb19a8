package compose

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func randomNRGBA(w, h int, alpha uint8, seed int64) *image.NRGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(r.Intn(256))
		img.Pix[i+1] = uint8(r.Intn(256))
		img.Pix[i+2] = uint8(r.Intn(256))
		img.Pix[i+3] = alpha
	}
	return img
}

func TestComposite_Dimensions(t *testing.T) {
	t.Parallel()

	sizes := []struct{ w, h int }{{1, 1}, {10, 10}, {17, 3}, {3, 29}, {64, 48}}
	for _, s := range sizes {
		got := Composite(randomNRGBA(s.w, s.h, 200, int64(s.w*s.h)))
		assert.Equal(t, image.Rect(0, 0, s.w, s.h), got.Bounds())
		assert.Equal(t, 3, got.Channels())
		assert.Len(t, got.Pix, 3*s.w*s.h)
	}
}

func TestComposite_FullyOpaqueIsIdentity(t *testing.T) {
	t.Parallel()

	src := randomNRGBA(12, 9, 255, 1)
	got := Composite(src)

	for y := 0; y < 9; y++ {
		for x := 0; x < 12; x++ {
			want := src.NRGBAAt(x, y)
			c := got.RGBAAt(x, y)
			require.Equal(t, [3]uint8{want.R, want.G, want.B}, [3]uint8{c.R, c.G, c.B}, "pixel (%d,%d)", x, y)
		}
	}
}

func TestComposite_FullyTransparentIsWhite(t *testing.T) {
	t.Parallel()

	got := Composite(randomNRGBA(8, 5, 0, 2))
	for i := 0; i < len(got.Pix); i++ {
		require.Equal(t, uint8(255), got.Pix[i])
	}
}

func TestComposite_HalfOpacity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    color.NRGBA
	}{
		{"black", color.NRGBA{R: 0, G: 0, B: 0, A: 128}},
		{"red", color.NRGBA{R: 255, G: 0, B: 0, A: 128}},
		{"mixed", color.NRGBA{R: 40, G: 120, B: 200, A: 128}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Composite(uniformNRGBA(4, 4, tt.c))
			px := got.RGBAAt(2, 2)
			for i, ch := range [][2]uint8{{tt.c.R, px.R}, {tt.c.G, px.G}, {tt.c.B, px.B}} {
				want := (float64(ch[0]) + 255) / 2
				assert.InDelta(t, want, float64(ch[1]), 1.0, "channel %d", i)
			}
		})
	}
}

func TestComposite_RGBInputIsNoop(t *testing.T) {
	t.Parallel()

	first := Composite(randomNRGBA(6, 6, 90, 3))
	second := Composite(first)

	assert.Same(t, first, second)
}

func TestComposite_OpaqueInputWithoutAlpha(t *testing.T) {
	t.Parallel()

	// 灰度图没有 alpha，补齐后视为完全不透明
	gray := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i * 10)
	}

	got := Composite(gray)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			v := gray.GrayAt(x, y).Y
			assert.Equal(t, color.RGBA{R: v, G: v, B: v, A: 255}, got.RGBAAt(x, y))
		}
	}
}

func TestComposite_OffsetBounds(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(5, 7, 9, 10))
	src.SetNRGBA(5, 7, color.NRGBA{R: 100, G: 0, B: 0, A: 0})
	src.SetNRGBA(8, 9, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	got := Composite(src)
	require.Equal(t, image.Rect(0, 0, 4, 3), got.Bounds())
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, got.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, got.RGBAAt(3, 2))
}

func TestToNRGBA_PadsAlpha(t *testing.T) {
	t.Parallel()

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgba.SetRGBA(1, 1, color.RGBA{R: 9, G: 8, B: 7, A: 255})

	got := ToNRGBA(rgba)
	assert.Equal(t, color.NRGBA{R: 9, G: 8, B: 7, A: 255}, got.NRGBAAt(1, 1))
}

func TestNewCanvas(t *testing.T) {
	t.Parallel()

	canvas := NewCanvas(image.Rect(0, 0, 3, 2), White)
	for i := 0; i < len(canvas.Pix); i++ {
		assert.Equal(t, uint8(255), canvas.Pix[i])
	}
}

func TestEncodePNG_Truecolor(t *testing.T) {
	t.Parallel()

	img := Composite(uniformNRGBA(10, 10, color.NRGBA{R: 255, A: 255}))

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, img, png.BestSpeed))

	// IHDR 第 25 字节为颜色类型，2 表示 RGB 真彩色
	data := buf.Bytes()
	require.Greater(t, len(data), 26)
	assert.Equal(t, byte(2), data[25])

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), decoded.Bounds())
	r, g, b, a := decoded.At(4, 4).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0, 0, 0xffff}, [4]uint32{r, g, b, a})
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    png.CompressionLevel
		wantErr bool
	}{
		{"", png.DefaultCompression, false},
		{"default", png.DefaultCompression, false},
		{"None", png.NoCompression, false},
		{"speed", png.BestSpeed, false},
		{" best ", png.BestCompression, false},
		{"max", png.DefaultCompression, true},
	}

	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

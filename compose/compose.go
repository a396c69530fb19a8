package compose

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// White 不透明白色画布
var White = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// ToNRGBA 转为四通道非预乘格式，原点归零
// 没有 alpha 的图片补上不透明 alpha，已不透明的像素在合成后保持不变
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if nrgba, ok := img.(*image.NRGBA); ok {
		if b.Min == (image.Point{}) {
			return nrgba
		}
		// 逐行拷贝，避免经过预乘再还原带来的误差
		for y := 0; y < b.Dy(); y++ {
			i := nrgba.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+4*b.Dx()], nrgba.Pix[i:i+4*b.Dx()])
		}
		return dst
	}

	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// NewCanvas 生成与 r 同尺寸的纯色画布
func NewCanvas(r image.Rectangle, c color.NRGBA) *image.NRGBA {
	canvas := image.NewNRGBA(r)
	draw.Draw(canvas, r, image.NewUniform(c), image.Point{}, draw.Src)
	return canvas
}

// Composite 把分割结果按 alpha 叠加到白色画布上，再去掉 alpha 通道
//
// 每个通道: out = src*a/255 + dst*(1-a/255)，四舍五入到整数。
// 已经是三通道的输入原样返回。
func Composite(segmented image.Image) *RGB {
	if rgb, ok := segmented.(*RGB); ok {
		return rgb
	}

	src := ToNRGBA(segmented)
	canvas := NewCanvas(src.Bounds(), White)
	return over(src, canvas)
}

// over src 与 canvas 尺寸相同，由 Composite 保证
func over(src, canvas *image.NRGBA) *RGB {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := NewRGB(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		srow := y * src.Stride
		crow := y * canvas.Stride
		orow := y * out.Stride
		for x := 0; x < w; x++ {
			si := srow + x*4
			ci := crow + x*4
			oi := orow + x*3
			a := uint32(src.Pix[si+3])
			for c := 0; c < 3; c++ {
				s := uint32(src.Pix[si+c])
				d := uint32(canvas.Pix[ci+c])
				out.Pix[oi+c] = uint8((s*a + d*(255-a) + 127) / 255)
			}
		}
	}

	return out
}

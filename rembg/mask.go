package rembg

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"github.com/chaos-io/rmbg/compose"
)

// HasUsefulAlpha 检查 alpha 通道是否真的包含透明信息
// 只要存在非 255（非完全不透明），就认为“已有抠图”
func HasUsefulAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}

	nrgba := compose.ToNRGBA(img)
	for i := 3; i < len(nrgba.Pix); i += 4 {
		if nrgba.Pix[i] != 255 {
			return true
		}
	}
	return false
}

// ExtractMask 从模型输出中取出掩码
// 灰度输出本身就是掩码，其他输出取 alpha 通道
func ExtractMask(img image.Image) *image.Gray {
	b := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		draw.Draw(mask, mask.Bounds(), img, b.Min, draw.Src)
		return mask
	}

	nrgba := compose.ToNRGBA(img)
	for i := range mask.Pix {
		mask.Pix[i] = nrgba.Pix[i*4+3]
	}
	return mask
}

// ApplyMask 把掩码缩放到原图尺寸后写入 alpha 通道，原图不会被修改
func ApplyMask(src image.Image, mask *image.Gray) *image.NRGBA {
	dst := imaging.Clone(src)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	mask = fitMask(mask, w, h)
	for y := 0; y < h; y++ {
		row := y * dst.Stride
		mrow := y * mask.Stride
		for x := 0; x < w; x++ {
			dst.Pix[row+x*4+3] = mask.Pix[mrow+x]
		}
	}

	return dst
}

// fitMask 掩码尺寸与原图不一致时双线性缩放
func fitMask(mask *image.Gray, w, h int) *image.Gray {
	b := mask.Bounds()
	if b.Dx() == w && b.Dy() == h && b.Min == (image.Point{}) {
		return mask
	}

	resized := resize.Resize(uint(w), uint(h), mask, resize.Bilinear)
	if g, ok := resized.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return out
}

// resizeInput 把输入缩放到模型的输入尺寸，size <= 0 时保持原样
func resizeInput(img image.Image, size int) image.Image {
	if size <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return img
	}
	return resize.Resize(uint(size), uint(size), img, resize.Bilinear)
}

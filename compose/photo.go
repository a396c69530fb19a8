package compose

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// DPI 证件照打印分辨率
const DPI = 300

// 4x6 英寸相纸
const (
	SheetWidth  = 4 * DPI
	SheetHeight = 6 * DPI
)

type Unit string

const (
	Inch Unit = "in"
	CM   Unit = "cm"
)

// Preset 证件照规格
type Preset struct {
	Name   string
	Label  string
	Width  float64
	Height float64
	Unit   Unit
}

// Pixels 按 DPI 换算成像素，四舍五入
func (p Preset) Pixels() (int, int) {
	return toPixels(p.Width, p.Unit), toPixels(p.Height, p.Unit)
}

func toPixels(v float64, u Unit) int {
	if u == CM {
		v /= 2.54
	}
	return int(math.Round(v * DPI))
}

var Presets = []Preset{
	{Name: "us-passport", Label: "US Passport", Width: 2, Height: 2, Unit: Inch},
	{Name: "us-visa", Label: "US Visa", Width: 2, Height: 2, Unit: Inch},
	{Name: "canada-passport", Label: "Canada Passport", Width: 5, Height: 7, Unit: CM},
	{Name: "eu-id", Label: "EU/Schengen ID", Width: 3.5, Height: 4.5, Unit: CM},
	{Name: "uk-passport", Label: "UK Passport", Width: 3.5, Height: 4.5, Unit: CM},
	{Name: "china-passport", Label: "China Passport", Width: 3.3, Height: 4.8, Unit: CM},
	{Name: "india-passport", Label: "India Passport", Width: 3.5, Height: 3.5, Unit: CM},
	{Name: "japan-passport", Label: "Japan Passport", Width: 3.5, Height: 4.5, Unit: CM},
	{Name: "australia-passport", Label: "Australia Passport", Width: 3.5, Height: 4.5, Unit: CM},
}

// LookupPreset 名称不区分大小写
func LookupPreset(name string) (Preset, error) {
	for _, p := range Presets {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown preset %q", name)
}

// CropAspect 取包含 box、宽高比为 w:h 的最小矩形，以 box 为中心
// 越界时先平移，仍放不下则等比缩到图片以内
func CropAspect(img *image.NRGBA, box image.Rectangle, w, h int) *image.NRGBA {
	b := img.Bounds()
	ratio := float64(w) / float64(h)

	cw, ch := float64(box.Dx()), float64(box.Dy())
	if cw/ch < ratio {
		cw = ch * ratio
	} else {
		ch = cw / ratio
	}
	if cw > float64(b.Dx()) {
		cw, ch = float64(b.Dx()), float64(b.Dx())/ratio
	}
	if ch > float64(b.Dy()) {
		cw, ch = float64(b.Dy())*ratio, float64(b.Dy())
	}

	iw := max(1, int(math.Round(cw)))
	ih := max(1, int(math.Round(ch)))
	cx := (box.Min.X + box.Max.X) / 2
	cy := (box.Min.Y + box.Max.Y) / 2
	x0 := max(b.Min.X, min(cx-iw/2, b.Max.X-iw))
	y0 := max(b.Min.Y, min(cy-ih/2, b.Max.Y-ih))

	return imaging.Crop(img, image.Rect(x0, y0, x0+iw, y0+ih))
}

// FitPreset 围绕主体裁成规格比例并缩放到规格像素；找不到主体时用整张图
func FitPreset(img *image.NRGBA, p Preset, threshold float64) *image.NRGBA {
	w, h := p.Pixels()
	box, ok := SubjectBounds(img, threshold)
	if !ok {
		box = img.Bounds()
	}
	return imaging.Resize(CropAspect(img, box, w, h), w, h, imaging.Lanczos)
}

// Adjustments 亮度、对比度、饱和度，百分比，100 为原图
type Adjustments struct {
	Brightness float64
	Contrast   float64
	Saturation float64
}

var NoAdjustments = Adjustments{Brightness: 100, Contrast: 100, Saturation: 100}

func (a Adjustments) Neutral() bool {
	return a == NoAdjustments
}

// Adjust 依次调整亮度、以 128 为中点的对比度、保持亮度的饱和度
// 完全透明的像素不处理
func Adjust(img *image.NRGBA, a Adjustments) *image.NRGBA {
	if a.Neutral() {
		return img
	}

	bf, cf, sf := a.Brightness/100, a.Contrast/100, a.Saturation/100
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if c.A == 0 {
			return c
		}
		r := (float64(c.R)*bf-128)*cf + 128
		g := (float64(c.G)*bf-128)*cf + 128
		b := (float64(c.B)*bf-128)*cf + 128

		gray := 0.2126*r + 0.7152*g + 0.0722*b
		r = gray + sf*(r-gray)
		g = gray + sf*(g-gray)
		b = gray + sf*(b-gray)

		return color.NRGBA{R: clamp8(r), G: clamp8(g), B: clamp8(b), A: c.A}
	})
}

func clamp8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// Sheet 在 4x6 白色相纸上从左上角按行列平铺 photo
func Sheet(photo *image.NRGBA) (*image.NRGBA, error) {
	w, h := photo.Bounds().Dx(), photo.Bounds().Dy()
	cols, rows := SheetWidth/w, SheetHeight/h
	if cols == 0 || rows == 0 {
		return nil, fmt.Errorf("photo %dx%d does not fit a %dx%d sheet", w, h, SheetWidth, SheetHeight)
	}

	sheet := imaging.New(SheetWidth, SheetHeight, White)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			sheet = imaging.Paste(sheet, photo, image.Pt(col*w, row*h))
		}
	}
	return sheet, nil
}

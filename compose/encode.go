package compose

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"strings"
)

// EncodePNG 以真彩色（无 alpha）PNG 写出
func EncodePNG(w io.Writer, img *RGB, level png.CompressionLevel) error {
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// EncodePNGBytes EncodePNG 的便捷版本
func EncodePNGBytes(img *RGB, level png.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img, level); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseCompression 解析配置中的压缩级别: default, none, speed, best
func ParseCompression(s string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("unknown png compression %q", s)
	}
}

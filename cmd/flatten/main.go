package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/rmbg/compose"
	"github.com/chaos-io/rmbg/rembg"
	"github.com/chaos-io/rmbg/util"
)

func main() {
	var (
		input    = flag.String("in", "", "input image path or http(s) url")
		output   = flag.String("out", "", "output png path (default <input>_white.png)")
		endpoint = flag.String("endpoint", os.Getenv("RMBG_ENDPOINT"), "segmentation inference server url")
		model    = flag.String("model", rembg.DefaultModel, "model id sent to the inference server")
		apiKey   = flag.String("removebg-key", os.Getenv("REMOVE_BG_API_KEY"), "remove.bg api key")
		timeout  = flag.Duration("timeout", time.Minute, "model call timeout")
		crop     = flag.Bool("crop", false, "crop a square around the subject")
		maxSize  = flag.Int("max-size", 0, "shrink so the longest side is at most this many pixels")
		preset   = flag.String("preset", "", "crop and size to an id photo preset, e.g. us-passport, eu-id")
		sheet    = flag.Bool("sheet", false, "tile the photo on a 4x6 inch print sheet")
		bright   = flag.Float64("brightness", 100, "brightness percent")
		contrast = flag.Float64("contrast", 100, "contrast percent")
		saturate = flag.Float64("saturation", 100, "saturation percent")
		debug    = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	mode := "release"
	if *debug {
		mode = "debug"
	}
	if err := util.InitLogger(mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *output == "" {
		*output = defaultOutput(*input)
	}

	remover, err := newRemover(*endpoint, *model, *apiKey, *timeout)
	if err != nil {
		util.Logger.Fatal("failed to initialize background remover", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+10*time.Second)
	defer cancel()

	opts := options{
		crop:    *crop,
		maxSize: *maxSize,
		sheet:   *sheet,
	}
	if adj := (compose.Adjustments{Brightness: *bright, Contrast: *contrast, Saturation: *saturate}); !adj.Neutral() {
		opts.adjust = &adj
	}
	if *preset != "" {
		p, err := compose.LookupPreset(*preset)
		if err != nil {
			util.Logger.Fatal("invalid preset", zap.Error(err))
		}
		opts.preset = &p
	}
	if err := run(ctx, remover, *input, *output, opts); err != nil {
		util.Logger.Fatal("flatten failed", zap.String("input", *input), zap.Error(err))
	}
	util.Logger.Info("done", zap.String("output", *output))
}

// newRemover 没有配置任何后端时，整张图视为前景
func newRemover(endpoint, model, apiKey string, timeout time.Duration) (rembg.Remover, error) {
	var chain rembg.Chain
	if endpoint != "" {
		r, err := rembg.NewInferenceRemover(rembg.InferenceConfig{
			Endpoint:  endpoint,
			Model:     model,
			InputSize: rembg.DefaultInputSize,
			Timeout:   timeout,
		}, nil)
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)
	}
	if apiKey != "" {
		r, err := rembg.NewRemoveBGRemover(rembg.RemoveBGConfig{APIKey: apiKey, Timeout: timeout}, nil)
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)
	}
	if len(chain) == 0 {
		util.Logger.Warn("no model backend configured, alpha of the input is used as mask")
		return rembg.NewPassthrough(), nil
	}
	return chain, nil
}

type options struct {
	crop    bool
	maxSize int
	preset  *compose.Preset
	sheet   bool
	adjust  *compose.Adjustments
}

// 主体判定阈值，与 alpha 掩码的 80% 对应
const subjectThreshold = 0.8

func run(ctx context.Context, remover rembg.Remover, input, output string, opts options) error {
	img, err := load(ctx, input)
	if err != nil {
		return err
	}

	segmented, err := remover.Remove(ctx, img)
	if err != nil {
		return fmt.Errorf("remove background: %w", err)
	}

	cut := compose.ToNRGBA(segmented)
	switch {
	case opts.preset != nil:
		cut = compose.FitPreset(cut, *opts.preset, subjectThreshold)
	case opts.crop:
		if box, ok := compose.SubjectBounds(cut, subjectThreshold); ok {
			cut = compose.CropSquare(cut, box)
		} else {
			util.Logger.Warn("no subject found, skip crop")
		}
	}
	cut = compose.FitWithin(cut, opts.maxSize)

	if opts.adjust != nil {
		cut = compose.Adjust(cut, *opts.adjust)
	}

	if opts.sheet {
		if cut, err = compose.Sheet(cut); err != nil {
			return err
		}
	}

	return writePNG(output, compose.Composite(cut))
}

// writePNG 编码或关闭文件失败都返回错误
func writePNG(path string, img *compose.RGB) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := compose.EncodePNG(f, img, png.DefaultCompression); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func load(ctx context.Context, input string) (image.Image, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return util.DownloadImage(ctx, input)
	}
	return util.OpenImage(input)
}

func defaultOutput(input string) string {
	base := filepath.Base(input)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		name = "image"
	}
	return filepath.Join("output", name+"_white.png")
}

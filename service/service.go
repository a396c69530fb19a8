package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/rmbg/cache"
	"github.com/chaos-io/rmbg/compose"
	"github.com/chaos-io/rmbg/rembg"
	"github.com/chaos-io/rmbg/util"
)

// ResultCache 按上传内容缓存编码后的结果
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

// ResultStore 持久化结果，返回可回取的 id
type ResultStore interface {
	Save(data []byte) (string, error)
}

type Options struct {
	Model           string
	MaxUpload       int64
	MaxPixels       int64
	Compression     png.CompressionLevel
	SkipTransparent bool
}

type Option func(*BackgroundService)

func WithCache(c ResultCache) Option {
	return func(s *BackgroundService) { s.cache = c }
}

func WithStore(st ResultStore) Option {
	return func(s *BackgroundService) { s.store = st }
}

// WithRemoveObserver 模型调用耗时回调，用于上报指标
func WithRemoveObserver(fn func(time.Duration)) Option {
	return func(s *BackgroundService) { s.observe = fn }
}

type Result struct {
	PNG    []byte
	Width  int
	Height int
	Cached bool
	ID     string
}

// BackgroundService 解码、抠图、合成到白底、编码
type BackgroundService struct {
	remover rembg.Remover
	opts    Options
	cache   ResultCache
	store   ResultStore
	observe func(time.Duration)
}

func NewBackgroundService(remover rembg.Remover, opts Options, options ...Option) *BackgroundService {
	if remover == nil {
		remover = rembg.Chain(nil)
	}
	s := &BackgroundService{
		remover: remover,
		opts:    opts,
		observe: func(time.Duration) {},
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *BackgroundService) Model() string {
	return s.opts.Model
}

// Process 处理一张上传图片
func (s *BackgroundService) Process(ctx context.Context, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrMissingInput
	}
	if s.opts.MaxUpload > 0 && int64(len(data)) > s.opts.MaxUpload {
		return nil, newError(KindTooLarge, fmt.Errorf("upload of %d bytes exceeds %d", len(data), s.opts.MaxUpload))
	}

	key := cache.Key(util.BytesMD5(data), s.opts.Model, s.opts.Compression, s.opts.SkipTransparent)
	if res := s.lookup(ctx, key); res != nil {
		return res, nil
	}

	if err := s.checkPixels(data); err != nil {
		return nil, err
	}

	img, err := util.DecodeImageBytes(data)
	if err != nil {
		return nil, newError(KindDecodeFailure, err)
	}

	segmented, err := s.segment(ctx, img)
	if err != nil {
		return nil, err
	}

	out := compose.Composite(segmented)
	encoded, err := compose.EncodePNGBytes(out, s.opts.Compression)
	if err != nil {
		return nil, newError(KindInternal, err)
	}

	res := &Result{
		PNG:    encoded,
		Width:  out.Bounds().Dx(),
		Height: out.Bounds().Dy(),
	}
	s.save(ctx, key, res)

	return res, nil
}

// checkPixels 解码前按头部声明的尺寸拒绝过大的图片
func (s *BackgroundService) checkPixels(data []byte) error {
	cfg, _, err := util.DecodeImageConfig(data)
	if err != nil {
		return newError(KindDecodeFailure, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return newError(KindDecodeFailure, fmt.Errorf("invalid image size %dx%d", cfg.Width, cfg.Height))
	}
	if s.opts.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > s.opts.MaxPixels {
		return newError(KindTooLarge,
			fmt.Errorf("image of %dx%d pixels exceeds %d", cfg.Width, cfg.Height, s.opts.MaxPixels))
	}
	return nil
}

func (s *BackgroundService) segment(ctx context.Context, img image.Image) (image.Image, error) {
	if s.opts.SkipTransparent && rembg.HasUsefulAlpha(img) {
		util.Logger.Debug("upload already has alpha, skip model")
		return img, nil
	}

	start := time.Now()
	segmented, err := s.remover.Remove(ctx, img)
	s.observe(time.Since(start))
	if err != nil {
		if errors.Is(err, rembg.ErrNotConfigured) {
			return nil, newError(KindNotConfigured, err)
		}
		return nil, newError(KindModelInvocationFailure, fmt.Errorf("remove background: %w", err))
	}

	in, got := img.Bounds(), segmented.Bounds()
	if in.Dx() != got.Dx() || in.Dy() != got.Dy() {
		return nil, newError(KindModelInvocationFailure,
			fmt.Errorf("segmentation returned %dx%d for %dx%d input", got.Dx(), got.Dy(), in.Dx(), in.Dy()))
	}
	return segmented, nil
}

func (s *BackgroundService) lookup(ctx context.Context, key string) *Result {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		util.Logger.Warn("failed to get cache", zap.String("key", key), zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		util.Logger.Warn("ignore corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &Result{PNG: data, Width: cfg.Width, Height: cfg.Height, Cached: true}
}

// save 缓存和持久化失败只记日志，不影响本次请求
func (s *BackgroundService) save(ctx context.Context, key string, res *Result) {
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res.PNG); err != nil {
			util.Logger.Warn("failed to set cache", zap.String("key", key), zap.Error(err))
		}
	}
	if s.store != nil {
		id, err := s.store.Save(res.PNG)
		if err != nil {
			util.Logger.Warn("failed to store result", zap.Error(err))
			return
		}
		res.ID = id
	}
}

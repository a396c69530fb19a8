package rembg

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/chaos-io/rmbg/compose"
	"github.com/chaos-io/rmbg/util"
)

// ErrNotConfigured 没有任何可用的抠图后端
var ErrNotConfigured = errors.New("no background remover configured")

// Remover 输入解码后的图片，返回同尺寸、alpha 通道为前景掩码的图片
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// RemoverFunc 让普通函数满足 Remover
type RemoverFunc func(ctx context.Context, img image.Image) (image.Image, error)

func (f RemoverFunc) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

// Passthrough 不调用模型，整张图视为前景
type Passthrough struct{}

func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	return compose.ToNRGBA(img), nil
}

// Chain 依次尝试多个后端，第一个成功的结果生效
type Chain []Remover

func (c Chain) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if len(c) == 0 {
		return nil, ErrNotConfigured
	}

	var errs []error
	for i, r := range c {
		out, err := r.Remove(ctx, img)
		if err == nil {
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		util.Logger.Warn("background remover failed, trying next",
			zap.Int("index", i),
			zap.String("remover", fmt.Sprintf("%T", r)),
			zap.Error(err))
		errs = append(errs, err)
	}

	return nil, fmt.Errorf("all %d removers failed: %w", len(c), errors.Join(errs...))
}
